// Package shadowbuilder is the public entry point for running deck
// optimizations and reading back their results.
package shadowbuilder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/efinauri/shadowbuilder/internal/catalog"
	"github.com/efinauri/shadowbuilder/internal/deck"
	"github.com/efinauri/shadowbuilder/internal/evo"
	"github.com/efinauri/shadowbuilder/internal/fitness"
	"github.com/efinauri/shadowbuilder/internal/model"
	"github.com/efinauri/shadowbuilder/internal/platform"
	"github.com/efinauri/shadowbuilder/internal/render"
	"github.com/efinauri/shadowbuilder/internal/stats"
	"github.com/efinauri/shadowbuilder/internal/storage"
)

const (
	defaultRunsDir        = "runs"
	defaultExportsDir     = "exports"
	defaultDBPath         = "shadowbuilder.db"
	defaultTargetSize     = 40
	defaultMaxCopies      = 3
	defaultPopulationSize = 2048
	defaultTargetFitness  = 0.95
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *logrus.Logger
}

type Client struct {
	store storage.Store
	forge *platform.Forge

	runsDir    string
	exportsDir string
	logger     *logrus.Logger
}

type RunRequest struct {
	RunID       string
	ResumeFrom  string
	CatalogPath string
	// Cards skips loading CatalogPath when set.
	Cards             []catalog.Card
	Craft             string
	Format            string
	Tags              []string
	TargetSize        int
	MaxCopies         int
	IdealCurve        []float64
	Weights           fitness.Weights
	ConsistencyOffset int
	Population        int
	MaxGenerations    int
	TargetFitness     float64
	Seed              int64
	Selection         string
	// Zero temperature fields derive from the pool size: start at the pool
	// size, floor at its rounded square root, anneal by one per generation.
	TemperatureStart     int
	TemperatureMin       int
	TemperatureAnnealing float64
	// All-zero cull fields select the default schedule.
	CullBase      float64
	CullAnnealing float64
	CullCap       float64
	Observer      func(model.GenerationDiagnostics)
}

type RunSummary struct {
	RunID            string
	State            string
	ArtifactsDir     string
	Generations      int
	BestByGeneration []float64
	BestDeck         model.DeckRecord
	Curve            []int
	PortalLink       string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Craft            string
	Format           string
	Seed             int64
	Population       int
	Generations      int
	State            string
	FinalBestFitness float64
}

// RunRef names a run either by id or as the most recent one.
type RunRef struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunRef
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type FitnessHistoryRequest struct {
	RunRef
	Limit int
}

type DiagnosticsRequest struct {
	RunRef
	Limit int
}

type DeckView struct {
	Record     model.DeckRecord
	Curve      []int
	PortalLink string
}

type TagsRequest struct {
	CatalogPath string
	Cards       []catalog.Card
	Craft       string
	Format      string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		runsDir:    runsDir,
		exportsDir: exportsDir,
		logger:     opts.Logger,
	}, nil
}

func (c *Client) Close() error {
	if c.forge != nil {
		c.forge.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureForge(ctx)
	return err
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	format, err := catalog.ParseFormat(req.Format)
	if err != nil {
		return RunSummary{}, err
	}
	cat, err := loadCatalog(req.CatalogPath, req.Cards, req.Craft, format)
	if err != nil {
		return RunSummary{}, err
	}

	if req.TargetSize <= 0 {
		req.TargetSize = defaultTargetSize
	}
	if req.MaxCopies <= 0 {
		req.MaxCopies = defaultMaxCopies
	}
	if req.Population <= 0 {
		req.Population = defaultPopulationSize
	}
	if req.TargetFitness == 0 {
		req.TargetFitness = defaultTargetFitness
	}
	if req.MaxGenerations < 0 {
		return RunSummary{}, errors.New("max generations must be >= 0")
	}
	if len(req.IdealCurve) == 0 {
		req.IdealCurve = append([]float64(nil), fitness.DefaultIdealCurve...)
	}
	if req.Weights == (fitness.Weights{}) {
		req.Weights = fitness.DefaultWeights()
	}
	unavailable, err := unknownTags(cat, req.Tags)
	if err != nil {
		return RunSummary{}, err
	}
	if len(unavailable) > 0 {
		return RunSummary{}, fmt.Errorf("tags not carried by any %s card: %v", req.Craft, unavailable)
	}

	selector, err := evo.SelectorByName(req.Selection)
	if err != nil {
		return RunSummary{}, err
	}

	pool := cat.Size()
	temperature := deck.Temperature{
		Start:         req.TemperatureStart,
		Min:           req.TemperatureMin,
		AnnealingRate: req.TemperatureAnnealing,
	}
	if temperature.Start <= 0 {
		temperature.Start = pool
	}
	if temperature.Min <= 0 {
		temperature.Min = int(math.Round(math.Sqrt(float64(pool))))
	}
	if temperature.AnnealingRate == 0 {
		temperature.AnnealingRate = 1
	}

	cull := evo.CullParams{Base: req.CullBase, Annealing: req.CullAnnealing, Cap: req.CullCap}
	if cull == (evo.CullParams{}) {
		cull = evo.DefaultCullParams()
	}

	forge, err := c.ensureForge(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	result, runErr := forge.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:       req.RunID,
		ResumeFrom:  req.ResumeFrom,
		CatalogPath: req.CatalogPath,
		Catalog:     cat,
		Craft:       req.Craft,
		Format:      format,
		Limits: deck.Limits{
			TargetSize: req.TargetSize,
			MaxCopies:  req.MaxCopies,
			PoolSize:   pool,
		},
		Fitness: fitness.Config{
			IdealCurve:        req.IdealCurve,
			Weights:           req.Weights,
			ConsistencyOffset: req.ConsistencyOffset,
			Tags:              req.Tags,
		},
		PopulationSize: req.Population,
		MaxGenerations: req.MaxGenerations,
		TargetFitness:  req.TargetFitness,
		Seed:           req.Seed,
		Selector:       selector,
		Temperature:    temperature,
		Cull:           cull,
		Observer:       req.Observer,
	})
	if result.RunID == "" {
		return RunSummary{}, runErr
	}

	summary := RunSummary{
		RunID:            result.RunID,
		State:            result.State,
		ArtifactsDir:     result.ArtifactsDir,
		Generations:      result.Generations,
		BestByGeneration: result.BestByGeneration,
		BestDeck:         result.BestDeck,
		Curve:            result.Curve,
	}
	if len(result.BestDeck.Cards) > 0 {
		link, err := render.PortalLink(format, req.Craft, result.BestDeck.Cards)
		if err != nil {
			return RunSummary{}, err
		}
		summary.PortalLink = link
	}
	return summary, runErr
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Craft:            e.Craft,
			Format:           e.Format,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			State:            e.State,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	runID, err := c.resolveRunID(req.RunRef)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// FitnessHistory reads the best fitness per generation from the store, or
// from the run artifacts when the store does not hold the run.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunRef)
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureForge(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessSeries(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunRef)
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureForge(ctx); err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) BestDeck(ctx context.Context, ref RunRef) (DeckView, error) {
	runID, err := c.resolveRunID(ref)
	if err != nil {
		return DeckView{}, err
	}
	if _, err := c.ensureForge(ctx); err != nil {
		return DeckView{}, err
	}

	record, ok, err := c.store.GetBestDeck(ctx, runID)
	if err != nil {
		return DeckView{}, err
	}
	if !ok {
		record, ok, err = stats.ReadBestDeck(c.runsDir, runID)
		if err != nil {
			return DeckView{}, err
		}
	}
	if !ok {
		return DeckView{}, fmt.Errorf("best deck not found for run id: %s", runID)
	}

	buckets := len(fitness.DefaultIdealCurve)
	if cfg, ok, err := stats.ReadRunConfig(c.runsDir, runID); err == nil && ok && len(cfg.IdealCurve) > 0 {
		buckets = len(cfg.IdealCurve)
	}
	view := DeckView{Record: record, Curve: render.Curve(record.Cards, buckets)}
	if len(record.Cards) > 0 {
		format, err := catalog.ParseFormat(record.Format)
		if err != nil {
			return DeckView{}, err
		}
		view.PortalLink, err = render.PortalLink(format, record.Craft, record.Cards)
		if err != nil {
			return DeckView{}, err
		}
	}
	return view, nil
}

// Tags lists the tags a craft can ask for in a format.
func (c *Client) Tags(_ context.Context, req TagsRequest) ([]string, error) {
	format, err := catalog.ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(req.CatalogPath, req.Cards, req.Craft, format)
	if err != nil {
		return nil, err
	}
	return cat.AvailableTags(), nil
}

func (c *Client) resolveRunID(ref RunRef) (string, error) {
	if ref.RunID != "" && ref.Latest {
		return "", errors.New("use either run id or latest")
	}
	if !ref.Latest {
		if ref.RunID == "" {
			return "", errors.New("run id or latest is required")
		}
		return ref.RunID, nil
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureForge(ctx context.Context) (*platform.Forge, error) {
	if c.forge != nil {
		return c.forge, nil
	}
	f := platform.NewForge(platform.Config{Store: c.store, RunsDir: c.runsDir, Logger: c.logger})
	if err := f.Init(ctx); err != nil {
		return nil, err
	}
	c.forge = f
	return c.forge, nil
}

func loadCatalog(path string, cards []catalog.Card, craft string, format catalog.Format) (*catalog.Catalog, error) {
	if cards == nil {
		if path == "" {
			return nil, errors.New("catalog path is required")
		}
		loaded, err := catalog.Load(path)
		if err != nil {
			return nil, err
		}
		cards = loaded
	}
	return catalog.Build(cards, catalog.Filter{Craft: craft, Format: format})
}

func unknownTags(cat *catalog.Catalog, tags []string) ([]string, error) {
	available := make(map[string]struct{})
	for _, tag := range cat.AvailableTags() {
		available[tag] = struct{}{}
	}
	var missing []string
	for _, tag := range tags {
		if tag == "" {
			return nil, errors.New("tags must not be empty")
		}
		if _, ok := available[tag]; !ok {
			missing = append(missing, tag)
		}
	}
	return missing, nil
}
