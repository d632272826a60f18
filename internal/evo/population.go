package evo

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/efinauri/shadowbuilder/internal/deck"
	"github.com/efinauri/shadowbuilder/internal/rng"
)

type ScoredDeck struct {
	Deck    *deck.Deck
	Fitness float64
}

func (s ScoredDeck) Clone() ScoredDeck {
	if s.Deck == nil {
		return s
	}
	return ScoredDeck{Deck: s.Deck.Clone(), Fitness: s.Fitness}
}

type Stats struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

// Scorer rates one complete deck.
type Scorer interface {
	Rate(d *deck.Deck) float64
}

// Population is a fixed-size array of scored decks. Culled slots stay in the
// array and are overwritten by reproduction.
type Population struct {
	members   []ScoredDeck
	stats     Stats
	best      ScoredDeck
	survivors int
}

func NewPopulation(decks []*deck.Deck) (*Population, error) {
	if len(decks) < 2 {
		return nil, fmt.Errorf("population size must be >= 2, got %d", len(decks))
	}
	members := make([]ScoredDeck, len(decks))
	for i, d := range decks {
		if d == nil {
			return nil, fmt.Errorf("population deck %d is nil", i)
		}
		members[i] = ScoredDeck{Deck: d}
	}
	return &Population{members: members, survivors: len(members)}, nil
}

func (p *Population) Size() int {
	return len(p.members)
}

// Members returns the current ordering. The decks are shared; callers must
// not mutate them.
func (p *Population) Members() []ScoredDeck {
	return slices.Clone(p.members)
}

func (p *Population) Stats() Stats {
	return p.stats
}

// Best returns a clone of the best-ever deck, or false before the first
// evaluation.
func (p *Population) Best() (ScoredDeck, bool) {
	if p.best.Deck == nil {
		return ScoredDeck{}, false
	}
	return p.best.Clone(), true
}

func (p *Population) Survivors() int {
	return p.survivors
}

// Evaluate scores every member, records the stats and sorts descending by
// fitness. Ties keep their previous relative order.
func (p *Population) Evaluate(scorer Scorer) Stats {
	scores := make([]float64, len(p.members))
	for i := range p.members {
		p.members[i].Fitness = scorer.Rate(p.members[i].Deck)
		scores[i] = p.members[i].Fitness
	}
	p.stats = Stats{
		Min:  floats.Min(scores),
		Mean: stat.Mean(scores, nil),
		Max:  floats.Max(scores),
	}
	slices.SortStableFunc(p.members, func(a, b ScoredDeck) int {
		return cmp.Compare(b.Fitness, a.Fitness)
	})
	p.survivors = len(p.members)

	if top := p.members[0]; p.best.Deck == nil || top.Fitness > p.best.Fitness {
		p.best = top.Clone()
	}
	return p.stats
}

// Cull marks the longest prefix scoring at least threshold as the survivors
// and returns its length.
func (p *Population) Cull(threshold float64) int {
	p.survivors = sort.Search(len(p.members), func(i int) bool {
		return p.members[i].Fitness < threshold
	})
	return p.survivors
}

// Reproduce overwrites slots N-1 down to 1 with mutated offspring. Parents
// for a slot come from the first min(survivors, slot) members, none of which
// has been overwritten yet, so slot 0 always carries over verbatim. The
// returned count is the number of children kept unmutated because their
// replacement window was exhausted.
func (p *Population) Reproduce(r rng.Source, selector Selector, temp deck.Temperature, elapsed int) (int, error) {
	if p.survivors < 1 {
		return 0, errors.New("reproduce requires at least one survivor")
	}
	fallbacks := 0
	for slot := len(p.members) - 1; slot >= 1; slot-- {
		selectable := min(p.survivors, slot)
		a, err := selector.PickParent(r, p.members, selectable)
		if err != nil {
			return fallbacks, fmt.Errorf("slot %d: select first parent: %w", slot, err)
		}
		b, err := selector.PickParent(r, p.members, selectable)
		if err != nil {
			return fallbacks, fmt.Errorf("slot %d: select second parent: %w", slot, err)
		}
		child, err := p.members[a].Deck.Crossover(p.members[b].Deck, r)
		if err != nil {
			return fallbacks, fmt.Errorf("slot %d: %w", slot, err)
		}
		if err := child.Mutate(r, temp, elapsed); err != nil {
			if !errors.Is(err, deck.ErrNoReplacement) {
				return fallbacks, fmt.Errorf("slot %d: mutate: %w", slot, err)
			}
			fallbacks++
		}
		p.members[slot] = ScoredDeck{Deck: child}
	}
	return fallbacks, nil
}

// Distinct counts the distinct deck fingerprints in the population.
func (p *Population) Distinct() int {
	seen := make(map[string]struct{}, len(p.members))
	for _, m := range p.members {
		seen[Fingerprint(m.Deck)] = struct{}{}
	}
	return len(seen)
}
