package evo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/efinauri/shadowbuilder/internal/rng"
)

var (
	ErrSelectionExhausted = errors.New("selection exhausted its attempts")
	ErrSelectorNotFound   = errors.New("selector not found")
)

const defaultAcceptanceAttempts = 1 << 16

// Selector chooses a parent index from the first selectable members of a
// population ranked by descending fitness.
type Selector interface {
	Name() string
	PickParent(r rng.Source, ranked []ScoredDeck, selectable int) (int, error)
}

func checkSelectable(r rng.Source, ranked []ScoredDeck, selectable int) error {
	if r == nil {
		return fmt.Errorf("random source is required")
	}
	if selectable <= 0 || selectable > len(ranked) {
		return fmt.Errorf("invalid selectable count: %d", selectable)
	}
	return nil
}

// StochasticAcceptanceSelector draws a uniform candidate and accepts it with
// probability fitness/max, retrying on rejection. The generation maximum is
// the fitness at rank 0.
type StochasticAcceptanceSelector struct {
	MaxAttempts int
}

func (StochasticAcceptanceSelector) Name() string {
	return "stochastic_acceptance"
}

func (s StochasticAcceptanceSelector) PickParent(r rng.Source, ranked []ScoredDeck, selectable int) (int, error) {
	if err := checkSelectable(r, ranked, selectable); err != nil {
		return 0, err
	}
	maxFitness := ranked[0].Fitness
	if maxFitness <= 0 {
		// Nothing would ever be accepted.
		return r.IntRange(0, selectable), nil
	}
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAcceptanceAttempts
	}
	for i := 0; i < attempts; i++ {
		candidate := r.IntRange(0, selectable)
		if r.Chance(ranked[candidate].Fitness / maxFitness) {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("%w: %d draws over %d candidates", ErrSelectionExhausted, attempts, selectable)
}

// EliteSelector picks uniformly among the selectable prefix.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickParent(r rng.Source, ranked []ScoredDeck, selectable int) (int, error) {
	if err := checkSelectable(r, ranked, selectable); err != nil {
		return 0, err
	}
	return r.IntRange(0, selectable), nil
}

// TournamentSelector samples candidates and picks the best fitness among them.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(r rng.Source, ranked []ScoredDeck, selectable int) (int, error) {
	if err := checkSelectable(r, ranked, selectable); err != nil {
		return 0, err
	}
	size := s.TournamentSize
	if size <= 0 {
		size = 3
	}
	size = min(size, selectable)

	best := r.IntRange(0, selectable)
	for i := 1; i < size; i++ {
		candidate := r.IntRange(0, selectable)
		if ranked[candidate].Fitness > ranked[best].Fitness {
			best = candidate
		}
	}
	return best, nil
}

var selectorFactories = map[string]func() Selector{
	"stochastic_acceptance": func() Selector { return StochasticAcceptanceSelector{} },
	"elite":                 func() Selector { return EliteSelector{} },
	"tournament":            func() Selector { return TournamentSelector{} },
}

// SelectorByName resolves a selector name; the empty name is stochastic
// acceptance.
func SelectorByName(name string) (Selector, error) {
	if name == "" {
		return StochasticAcceptanceSelector{}, nil
	}
	factory, ok := selectorFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, name)
	}
	return factory(), nil
}

func SelectorNames() []string {
	names := make([]string, 0, len(selectorFactories))
	for name := range selectorFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
