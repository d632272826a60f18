package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/efinauri/shadowbuilder/internal/catalog"
	"github.com/efinauri/shadowbuilder/internal/deck"
	"github.com/efinauri/shadowbuilder/internal/evo"
	"github.com/efinauri/shadowbuilder/internal/fitness"
	"github.com/efinauri/shadowbuilder/internal/logging"
	"github.com/efinauri/shadowbuilder/internal/model"
	"github.com/efinauri/shadowbuilder/internal/rng"
	"github.com/efinauri/shadowbuilder/internal/stats"
	"github.com/efinauri/shadowbuilder/internal/storage"
)

// StateInterrupted marks a run whose context ended before the engine stopped
// on its own.
const StateInterrupted = "interrupted"

type Config struct {
	Store storage.Store
	// RunsDir receives per-run artifacts and the run index. Empty disables
	// artifact files.
	RunsDir string
	Logger  *logrus.Logger
	Now     func() time.Time
}

type EvolutionConfig struct {
	RunID       string
	ResumeFrom  string
	CatalogPath string
	Catalog     *catalog.Catalog
	Craft       string
	Format      catalog.Format
	// Limits.PoolSize defaults to the catalog size.
	Limits         deck.Limits
	Fitness        fitness.Config
	PopulationSize int
	MaxGenerations int
	TargetFitness  float64
	Seed           int64
	Selector       evo.Selector
	Temperature    deck.Temperature
	Cull           evo.CullParams
	Observer       func(model.GenerationDiagnostics)
}

type EvolutionResult struct {
	RunID                 string
	State                 string
	Generations           int
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	BestDeck              model.DeckRecord
	Curve                 []int
	ArtifactsDir          string
}

// Forge runs optimizations and persists what they produce.
type Forge struct {
	store   storage.Store
	runsDir string
	log     *logrus.Logger
	now     func() time.Time

	mu      sync.Mutex
	started bool
	active  map[string]context.CancelFunc
}

func NewForge(cfg Config) *Forge {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Forge{
		store:   cfg.Store,
		runsDir: cfg.RunsDir,
		log:     log,
		now:     now,
		active:  make(map[string]context.CancelFunc),
	}
}

func (f *Forge) Init(ctx context.Context) error {
	if f.store == nil {
		return fmt.Errorf("store is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return nil
	}
	if err := f.store.Init(ctx); err != nil {
		return err
	}
	f.started = true
	return nil
}

// Stop cancels active runs. They persist what they have under the
// interrupted state.
func (f *Forge) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cancel := range f.active {
		cancel()
	}
	f.active = make(map[string]context.CancelFunc)
	f.started = false
}

func (f *Forge) Store() storage.Store {
	return f.store
}

// ActiveRuns lists the ids of runs currently executing.
func (f *Forge) ActiveRuns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.active))
	for id := range f.active {
		ids = append(ids, id)
	}
	return ids
}

func (f *Forge) register(runID string, cancel context.CancelFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return fmt.Errorf("forge is not initialized")
	}
	if _, exists := f.active[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	f.active[runID] = cancel
	return nil
}

func (f *Forge) unregister(runID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, runID)
}

// RunEvolution drives one engine to completion. A cancelled context still
// persists the generations run so far and returns the context error with the
// partial result.
func (f *Forge) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.Catalog == nil {
		return EvolutionResult{}, fmt.Errorf("catalog is required")
	}
	if cfg.Limits.PoolSize == 0 {
		cfg.Limits.PoolSize = cfg.Catalog.Size()
	}
	if cfg.Limits.PoolSize != cfg.Catalog.Size() {
		return EvolutionResult{}, fmt.Errorf("pool size mismatch: limits=%d catalog=%d", cfg.Limits.PoolSize, cfg.Catalog.Size())
	}
	if cfg.Selector == nil {
		cfg.Selector = evo.StochasticAcceptanceSelector{}
	}

	evaluator, err := fitness.NewEvaluator(cfg.Fitness, cfg.Limits, cfg.Catalog)
	if err != nil {
		return EvolutionResult{}, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	var (
		initial []*deck.Deck
		prior   []model.GenerationDiagnostics
	)
	if cfg.ResumeFrom != "" {
		initial, prior, err = f.loadResume(ctx, cfg.ResumeFrom, cfg.Limits, cfg.PopulationSize)
		if err != nil {
			return EvolutionResult{}, err
		}
	}

	engine, err := evo.NewEngine(evo.EngineConfig{
		Limits:         cfg.Limits,
		PopulationSize: cfg.PopulationSize,
		Scorer:         evaluator,
		Selector:       cfg.Selector,
		Temperature:    cfg.Temperature,
		Cull:           cfg.Cull,
		TargetFitness:  cfg.TargetFitness,
		Initial:        initial,
	}, rng.New(cfg.Seed))
	if err != nil {
		return EvolutionResult{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := f.register(runID, cancel); err != nil {
		return EvolutionResult{}, err
	}
	defer f.unregister(runID)

	log := f.log.WithFields(logrus.Fields{"run_id": runID, "craft": cfg.Craft, "format": cfg.Format})
	log.WithFields(logrus.Fields{
		"population": cfg.PopulationSize,
		"pool":       cfg.Limits.PoolSize,
		"selector":   cfg.Selector.Name(),
		"seed":       cfg.Seed,
		"resumed":    cfg.ResumeFrom,
	}).Info("run started")

	offset := len(prior)
	res, runErr := engine.Run(runCtx, evo.RunOptions{
		MaxGenerations: cfg.MaxGenerations,
		Observer: func(d evo.GenerationDiagnostics) {
			diag := toModelDiagnostics(d, offset)
			log.WithFields(logrus.Fields{
				"generation":   diag.Generation,
				"best_fitness": diag.BestFitness,
				"survivors":    diag.Survivors,
			}).Debug("generation")
			if cfg.Observer != nil {
				cfg.Observer(diag)
			}
		},
	})
	interrupted := runErr != nil && (errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded))
	if runErr != nil && !interrupted {
		return EvolutionResult{}, runErr
	}

	state := res.State.String()
	if interrupted {
		state = StateInterrupted
	}

	diagnostics := append([]model.GenerationDiagnostics(nil), prior...)
	for _, d := range res.Diagnostics {
		diagnostics = append(diagnostics, toModelDiagnostics(d, offset))
	}
	history := make([]float64, 0, len(diagnostics))
	for _, d := range diagnostics {
		history = append(history, d.BestFitness)
	}

	best, _ := engine.Best()
	record := deckRecord(runID, cfg, best, evaluator)
	result := EvolutionResult{
		RunID:                 runID,
		State:                 state,
		Generations:           len(diagnostics),
		BestByGeneration:      history,
		GenerationDiagnostics: diagnostics,
		BestDeck:              record,
	}
	if best.Deck != nil {
		result.Curve = best.Deck.Curve(evaluator.BucketCount(), cfg.Catalog)
	}

	// Persistence outlives the run context so an interrupted run keeps its
	// partial history.
	persistCtx := context.WithoutCancel(ctx)
	createdAt := f.now().UTC().Format(time.RFC3339Nano)
	if err := f.persist(persistCtx, runID, createdAt, cfg, engine, result); err != nil {
		return EvolutionResult{}, err
	}
	if f.runsDir != "" {
		dir, err := f.writeArtifacts(runID, createdAt, cfg, result)
		if err != nil {
			return EvolutionResult{}, err
		}
		result.ArtifactsDir = dir
	}

	log.WithFields(logrus.Fields{
		"state":        state,
		"generations":  result.Generations,
		"best_fitness": record.Fitness,
	}).Info("run finished")
	if res.State == evo.StateCollapsed {
		log.Warn("population collapsed below two survivors")
	}

	if interrupted {
		return result, runErr
	}
	return result, nil
}

func (f *Forge) loadResume(ctx context.Context, runID string, limits deck.Limits, populationSize int) ([]*deck.Deck, []model.GenerationDiagnostics, error) {
	snapshot, ok, err := f.store.GetPopulation(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("population snapshot not found: %s", runID)
	}
	if snapshot.TargetSize != limits.TargetSize || snapshot.MaxCopies != limits.MaxCopies || snapshot.PoolSize != limits.PoolSize {
		return nil, nil, fmt.Errorf("snapshot %s limits (%d/%d/%d) do not match run limits (%d/%d/%d)",
			runID, snapshot.TargetSize, snapshot.MaxCopies, snapshot.PoolSize,
			limits.TargetSize, limits.MaxCopies, limits.PoolSize)
	}

	decks := make([]*deck.Deck, 0, min(len(snapshot.Decks), populationSize))
	for i, scored := range snapshot.Decks {
		if len(decks) == populationSize {
			break
		}
		entries := make([]deck.Entry, 0, len(scored.Entries))
		for _, e := range scored.Entries {
			entries = append(entries, deck.Entry{Index: e.Index, Count: e.Count})
		}
		d, err := deck.FromEntries(limits, entries)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot %s deck %d: %w", runID, i, err)
		}
		decks = append(decks, d)
	}

	prior, _, err := f.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return decks, prior, nil
}

func (f *Forge) persist(ctx context.Context, runID, createdAt string, cfg EvolutionConfig, engine *evo.Engine, result EvolutionResult) error {
	run := model.RunRecord{
		VersionedRecord: storage.NewVersion(),
		ID:              runID,
		CreatedAtUTC:    createdAt,
		Craft:           cfg.Craft,
		Format:          string(cfg.Format),
		Tags:            append([]string(nil), cfg.Fitness.Tags...),
		Seed:            cfg.Seed,
		PopulationSize:  cfg.PopulationSize,
		PoolSize:        cfg.Limits.PoolSize,
		Selector:        cfg.Selector.Name(),
		State:           result.State,
		Generations:     result.Generations,
		BestFitness:     result.BestDeck.Fitness,
		ResumedFrom:     cfg.ResumeFrom,
	}
	if err := f.store.SaveRun(ctx, run); err != nil {
		return err
	}
	if err := f.store.SaveBestDeck(ctx, result.BestDeck); err != nil {
		return err
	}
	if err := f.store.SavePopulation(ctx, snapshot(runID, cfg.Limits, result.Generations, engine.Population())); err != nil {
		return err
	}
	if err := f.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return err
	}
	return f.store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics)
}

func (f *Forge) writeArtifacts(runID, createdAt string, cfg EvolutionConfig, result EvolutionResult) (string, error) {
	dir, err := stats.WriteRunArtifacts(f.runsDir, stats.RunArtifacts{
		Config:                runConfig(runID, cfg),
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      result.BestDeck.Fitness,
		FinalState:            result.State,
		BestDeck:              result.BestDeck,
	})
	if err != nil {
		return "", err
	}
	err = stats.AppendRunIndex(f.runsDir, stats.RunIndexEntry{
		RunID:            runID,
		Craft:            cfg.Craft,
		Format:           string(cfg.Format),
		PopulationSize:   cfg.PopulationSize,
		Generations:      result.Generations,
		Seed:             cfg.Seed,
		State:            result.State,
		FinalBestFitness: result.BestDeck.Fitness,
		CreatedAtUTC:     createdAt,
	})
	return dir, err
}

func runConfig(runID string, cfg EvolutionConfig) stats.RunConfig {
	return stats.RunConfig{
		RunID:                runID,
		ResumeFrom:           cfg.ResumeFrom,
		CatalogPath:          cfg.CatalogPath,
		Craft:                cfg.Craft,
		Format:               string(cfg.Format),
		Tags:                 append([]string(nil), cfg.Fitness.Tags...),
		TargetSize:           cfg.Limits.TargetSize,
		MaxCopies:            cfg.Limits.MaxCopies,
		PoolSize:             cfg.Limits.PoolSize,
		IdealCurve:           append([]float64(nil), cfg.Fitness.IdealCurve...),
		WeightCurve:          cfg.Fitness.Weights.Curve,
		WeightTags:           cfg.Fitness.Weights.Tags,
		WeightConsistency:    cfg.Fitness.Weights.Consistency,
		ConsistencyOffset:    cfg.Fitness.ConsistencyOffset,
		PopulationSize:       cfg.PopulationSize,
		MaxGenerations:       cfg.MaxGenerations,
		TargetFitness:        cfg.TargetFitness,
		Seed:                 cfg.Seed,
		Selection:            cfg.Selector.Name(),
		TemperatureStart:     cfg.Temperature.Start,
		TemperatureMin:       cfg.Temperature.Min,
		TemperatureAnnealing: cfg.Temperature.AnnealingRate,
		CullBase:             cfg.Cull.Base,
		CullAnnealing:        cfg.Cull.Annealing,
		CullCap:              cfg.Cull.Cap,
	}
}

func deckRecord(runID string, cfg EvolutionConfig, best evo.ScoredDeck, evaluator *fitness.Evaluator) model.DeckRecord {
	record := model.DeckRecord{
		VersionedRecord: storage.NewVersion(),
		RunID:           runID,
		Craft:           cfg.Craft,
		Format:          string(cfg.Format),
		Cards:           []model.DeckCard{},
	}
	if best.Deck == nil {
		return record
	}
	breakdown := evaluator.Breakdown(best.Deck)
	record.Fitness = best.Fitness
	record.Curve = breakdown.Curve
	record.Tags = breakdown.Tags
	record.Consistency = breakdown.Consistency
	for _, e := range best.Deck.Entries() {
		card := cfg.Catalog.Card(e.Index)
		record.Cards = append(record.Cards, model.DeckCard{
			Index: e.Index,
			ID:    card.ID,
			Name:  card.Name,
			Cost:  card.Cost,
			Count: e.Count,
		})
	}
	return record
}

func snapshot(runID string, limits deck.Limits, generation int, pop *evo.Population) model.PopulationSnapshot {
	members := pop.Members()
	out := model.PopulationSnapshot{
		VersionedRecord: storage.NewVersion(),
		RunID:           runID,
		Generation:      generation,
		TargetSize:      limits.TargetSize,
		MaxCopies:       limits.MaxCopies,
		PoolSize:        limits.PoolSize,
		Decks:           make([]model.ScoredDeck, 0, len(members)),
	}
	for _, m := range members {
		entries := m.Deck.Entries()
		scored := model.ScoredDeck{Fitness: m.Fitness, Entries: make([]model.DeckEntry, 0, len(entries))}
		for _, e := range entries {
			scored.Entries = append(scored.Entries, model.DeckEntry{Index: e.Index, Count: e.Count})
		}
		out.Decks = append(out.Decks, scored)
	}
	return out
}

func toModelDiagnostics(d evo.GenerationDiagnostics, offset int) model.GenerationDiagnostics {
	return model.GenerationDiagnostics{
		Generation:        d.Generation + offset,
		BestFitness:       d.BestFitness,
		MeanFitness:       d.MeanFitness,
		MinFitness:        d.MinFitness,
		BestEverFitness:   d.BestEverFitness,
		CullThreshold:     d.CullThreshold,
		Survivors:         d.Survivors,
		DistinctDecks:     d.DistinctDecks,
		MutationFallbacks: d.MutationFallbacks,
		State:             d.State,
	}
}
