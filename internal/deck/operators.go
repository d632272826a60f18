package deck

import (
	"fmt"
	"math"

	"github.com/efinauri/shadowbuilder/internal/rng"
)

const defaultReplacementAttempts = 1024

// Temperature is the mutation neighborhood schedule. The radius starts at
// Start and shrinks by AnnealingRate per elapsed generation down to Min.
type Temperature struct {
	Start         int     `json:"start"`
	Min           int     `json:"min"`
	AnnealingRate float64 `json:"annealing_rate"`
	// MaxAttempts bounds the replacement search. Zero uses a default.
	MaxAttempts int `json:"max_attempts,omitempty"`
}

func (t Temperature) At(elapsed int) int {
	radius := t.Start - int(math.Round(t.AnnealingRate*float64(elapsed)))
	return max(radius, t.Min, 0)
}

func (t Temperature) attempts() int {
	if t.MaxAttempts > 0 {
		return t.MaxAttempts
	}
	return defaultReplacementAttempts
}

// Crossover is single-point: copies of d are taken in ascending index order
// until the child holds at least k copies, then copies of other are taken in
// descending index order until the child is complete.
func (d *Deck) Crossover(other *Deck, r rng.Source) (*Deck, error) {
	target := d.limits.TargetSize
	hi := max(target-d.limits.MaxCopies, 1)
	k := r.IntRange(1, hi+1)

	child := New(d.limits)
	for _, e := range d.entries {
		if child.size >= k {
			break
		}
		for c := 0; c < e.Count; c++ {
			child.Add(e.Index)
		}
	}
	if child.size == target {
		return child, nil
	}
	for i := len(other.entries) - 1; i >= 0; i-- {
		e := other.entries[i]
		for c := 0; c < e.Count; c++ {
			child.Add(e.Index)
			if child.size == target {
				return child, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: reached %d of %d copies", ErrCrossoverIncomplete, child.size, target)
}

// Mutate swaps one weighted-random copy for a card inside the temperature
// window around it. When MaxAttempts draws all hit capped cards the cut is
// undone and ErrNoReplacement is returned; the deck is then unchanged.
func (d *Deck) Mutate(r rng.Source, temp Temperature, elapsed int) error {
	cut, err := d.SelectWeightedIndex(r)
	if err != nil {
		return err
	}
	d.Cut(cut)

	radius := temp.At(elapsed)
	lo := max(cut-radius, 0)
	hi := min(cut+radius, d.limits.PoolSize-1)
	for attempt := 0; attempt < temp.attempts(); attempt++ {
		if d.Add(r.IntRange(lo, hi+1)) {
			return nil
		}
	}
	d.Add(cut)
	return fmt.Errorf("%w: [%d, %d] around %d", ErrNoReplacement, lo, hi, cut)
}
