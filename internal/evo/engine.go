package evo

import (
	"context"
	"fmt"
	"math"

	"github.com/efinauri/shadowbuilder/internal/deck"
	"github.com/efinauri/shadowbuilder/internal/rng"
)

type State int

const (
	StateInit State = iota
	StateEvaluated
	StateContinuing
	StateConverged
	StateCollapsed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateEvaluated:
		return "evaluated"
	case StateContinuing:
		return "continuing"
	case StateConverged:
		return "converged"
	case StateCollapsed:
		return "collapsed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the engine will not run further generations.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateCollapsed
}

type GenerationDiagnostics struct {
	Generation        int     `json:"generation"`
	BestFitness       float64 `json:"best_fitness"`
	MeanFitness       float64 `json:"mean_fitness"`
	MinFitness        float64 `json:"min_fitness"`
	BestEverFitness   float64 `json:"best_ever_fitness"`
	CullThreshold     float64 `json:"cull_threshold"`
	Survivors         int     `json:"survivors"`
	DistinctDecks     int     `json:"distinct_decks"`
	MutationFallbacks int     `json:"mutation_fallbacks"`
	State             string  `json:"state"`
}

type EngineConfig struct {
	Limits         deck.Limits
	PopulationSize int
	Scorer         Scorer
	Selector       Selector
	Temperature    deck.Temperature
	Cull           CullParams
	TargetFitness  float64
	// Initial seeds the population; missing slots are filled randomly.
	Initial []*deck.Deck
}

// Engine drives one optimization run, one generation per Tick.
type Engine struct {
	cfg         EngineConfig
	rng         rng.Source
	pop         *Population
	state       State
	elapsed     int
	diagnostics []GenerationDiagnostics
}

func NewEngine(cfg EngineConfig, r rng.Source) (*Engine, error) {
	if r == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}
	if cfg.PopulationSize < 2 {
		return nil, fmt.Errorf("population size must be >= 2")
	}
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if cfg.Temperature.Start < 0 || cfg.Temperature.Min < 0 || cfg.Temperature.AnnealingRate < 0 {
		return nil, fmt.Errorf("temperature parameters must be >= 0")
	}
	if err := cfg.Cull.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(cfg.TargetFitness) {
		return nil, fmt.Errorf("target fitness must be a number")
	}
	if len(cfg.Initial) > cfg.PopulationSize {
		return nil, fmt.Errorf("initial population mismatch: got=%d want<=%d", len(cfg.Initial), cfg.PopulationSize)
	}
	if cfg.Selector == nil {
		cfg.Selector = StochasticAcceptanceSelector{}
	}

	decks := make([]*deck.Deck, 0, cfg.PopulationSize)
	for i, d := range cfg.Initial {
		if d == nil || d.Limits() != cfg.Limits || !d.Complete() {
			return nil, fmt.Errorf("initial deck %d is not a complete deck for the configured limits", i)
		}
		decks = append(decks, d.Clone())
	}
	for len(decks) < cfg.PopulationSize {
		decks = append(decks, deck.Random(cfg.Limits, r))
	}
	pop, err := NewPopulation(decks)
	if err != nil {
		return nil, err
	}
	cfg.Initial = nil
	return &Engine{cfg: cfg, rng: r, pop: pop, state: StateInit}, nil
}

func (e *Engine) State() State {
	return e.state
}

// Generation is the number of completed reproduction steps; it is the
// elapsed time fed to both annealing schedules.
func (e *Engine) Generation() int {
	return e.elapsed
}

func (e *Engine) Population() *Population {
	return e.pop
}

func (e *Engine) Best() (ScoredDeck, bool) {
	return e.pop.Best()
}

func (e *Engine) Diagnostics() []GenerationDiagnostics {
	return append([]GenerationDiagnostics(nil), e.diagnostics...)
}

// Tick runs one generation and reports whether another should follow.
// Converged and collapsed runs return false without error; every later call
// is a no-op.
func (e *Engine) Tick() (bool, error) {
	if e.state.Terminal() {
		return false, nil
	}

	stats := e.pop.Evaluate(e.cfg.Scorer)
	e.state = StateEvaluated
	best, _ := e.pop.Best()
	diag := GenerationDiagnostics{
		Generation:      e.elapsed + 1,
		BestFitness:     stats.Max,
		MeanFitness:     stats.Mean,
		MinFitness:      stats.Min,
		BestEverFitness: best.Fitness,
		Survivors:       e.pop.Size(),
		DistinctDecks:   e.pop.Distinct(),
	}

	if stats.Max >= e.cfg.TargetFitness {
		e.finish(&diag, StateConverged)
		return false, nil
	}

	diag.CullThreshold = e.cfg.Cull.Threshold(e.elapsed)
	diag.Survivors = e.pop.Cull(diag.CullThreshold)
	if diag.Survivors < 2 {
		e.finish(&diag, StateCollapsed)
		return false, nil
	}

	fallbacks, err := e.pop.Reproduce(e.rng, e.cfg.Selector, e.cfg.Temperature, e.elapsed)
	if err != nil {
		return false, fmt.Errorf("generation %d: %w", diag.Generation, err)
	}
	diag.MutationFallbacks = fallbacks
	e.elapsed++
	e.finish(&diag, StateContinuing)
	return true, nil
}

func (e *Engine) finish(diag *GenerationDiagnostics, state State) {
	e.state = state
	diag.State = state.String()
	e.diagnostics = append(e.diagnostics, *diag)
}

type RunOptions struct {
	// MaxGenerations stops the loop after that many ticks in total. Zero
	// means no limit.
	MaxGenerations int
	Observer       func(GenerationDiagnostics)
}

type Result struct {
	State       State
	Generations int
	Best        ScoredDeck
	Stats       Stats
	Diagnostics []GenerationDiagnostics
}

// Run ticks until the engine stops, the generation limit is hit or ctx is
// done. Cancellation is only observed between generations.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return e.result(), err
		}
		if opts.MaxGenerations > 0 && len(e.diagnostics) >= opts.MaxGenerations {
			break
		}
		recorded := len(e.diagnostics)
		more, err := e.Tick()
		if err != nil {
			return e.result(), err
		}
		if opts.Observer != nil && len(e.diagnostics) > recorded {
			opts.Observer(e.diagnostics[len(e.diagnostics)-1])
		}
		if !more {
			break
		}
	}
	return e.result(), nil
}

func (e *Engine) result() Result {
	best, _ := e.pop.Best()
	return Result{
		State:       e.state,
		Generations: len(e.diagnostics),
		Best:        best,
		Stats:       e.pop.Stats(),
		Diagnostics: e.Diagnostics(),
	}
}
