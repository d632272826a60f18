// Package deck implements the capped multiset over catalog indices that the
// optimizer evolves.
package deck

import (
	"errors"
	"fmt"
	"slices"

	"github.com/efinauri/shadowbuilder/internal/rng"
)

var (
	ErrInvalidLimits       = errors.New("invalid deck limits")
	ErrEmptyDeck           = errors.New("deck is empty")
	ErrNoReplacement       = errors.New("no eligible replacement in window")
	ErrCrossoverIncomplete = errors.New("crossover could not complete the child deck")
)

// Limits bound every deck built over one catalog.
type Limits struct {
	TargetSize int `json:"target_size"`
	MaxCopies  int `json:"max_copies"`
	PoolSize   int `json:"pool_size"`
}

func (l Limits) Validate() error {
	if l.TargetSize <= 0 {
		return fmt.Errorf("%w: target size must be > 0", ErrInvalidLimits)
	}
	if l.MaxCopies <= 0 {
		return fmt.Errorf("%w: max copies must be > 0", ErrInvalidLimits)
	}
	if l.PoolSize <= 0 {
		return fmt.Errorf("%w: pool size must be > 0", ErrInvalidLimits)
	}
	if l.PoolSize*l.MaxCopies < l.TargetSize {
		return fmt.Errorf("%w: %d cards at %d copies cannot fill %d slots", ErrInvalidLimits, l.PoolSize, l.MaxCopies, l.TargetSize)
	}
	return nil
}

// MinUnique is the fewest distinct cards a complete deck can hold.
func (l Limits) MinUnique() int {
	return (l.TargetSize + l.MaxCopies - 1) / l.MaxCopies
}

type Entry struct {
	Index int `json:"index"`
	Count int `json:"count"`
}

// CostLookup resolves the cost of a catalog index.
type CostLookup interface {
	CostAt(index int) int
}

// Deck keeps its entries sorted by catalog index so every walk over it is
// deterministic for a given random source.
type Deck struct {
	limits  Limits
	entries []Entry
	size    int
}

func New(limits Limits) *Deck {
	return &Deck{limits: limits}
}

// FromEntries rebuilds a deck, rejecting entries that break the limits.
func FromEntries(limits Limits, entries []Entry) (*Deck, error) {
	d := New(limits)
	for _, e := range entries {
		if e.Index < 0 || e.Index >= limits.PoolSize {
			return nil, fmt.Errorf("entry index %d outside pool of %d", e.Index, limits.PoolSize)
		}
		if e.Count < 1 || e.Count > limits.MaxCopies {
			return nil, fmt.Errorf("entry %d has %d copies, want [1, %d]", e.Index, e.Count, limits.MaxCopies)
		}
		if d.Copies(e.Index) > 0 {
			return nil, fmt.Errorf("duplicate entry index %d", e.Index)
		}
		if d.size+e.Count > limits.TargetSize {
			return nil, fmt.Errorf("entries exceed target size %d", limits.TargetSize)
		}
		pos, _ := d.find(e.Index)
		d.entries = slices.Insert(d.entries, pos, e)
		d.size += e.Count
	}
	return d, nil
}

func (d *Deck) Limits() Limits {
	return d.limits
}

func (d *Deck) find(index int) (int, bool) {
	return slices.BinarySearchFunc(d.entries, index, func(e Entry, target int) int {
		return e.Index - target
	})
}

// Add puts one more copy of index in the deck. It returns false, leaving the
// deck untouched, when the card is at MaxCopies, the deck is full or the
// index is outside the pool.
func (d *Deck) Add(index int) bool {
	if index < 0 || index >= d.limits.PoolSize || d.size >= d.limits.TargetSize {
		return false
	}
	pos, ok := d.find(index)
	if !ok {
		d.entries = slices.Insert(d.entries, pos, Entry{Index: index, Count: 1})
		d.size++
		return true
	}
	if d.entries[pos].Count >= d.limits.MaxCopies {
		return false
	}
	d.entries[pos].Count++
	d.size++
	return true
}

// Cut removes one copy of index, dropping the entry at zero. Absent indices
// are ignored.
func (d *Deck) Cut(index int) {
	pos, ok := d.find(index)
	if !ok {
		return
	}
	d.entries[pos].Count--
	d.size--
	if d.entries[pos].Count <= 0 {
		d.entries = slices.Delete(d.entries, pos, pos+1)
	}
}

func (d *Deck) Size() int {
	return d.size
}

func (d *Deck) Complete() bool {
	return d.size == d.limits.TargetSize
}

func (d *Deck) Copies(index int) int {
	pos, ok := d.find(index)
	if !ok {
		return 0
	}
	return d.entries[pos].Count
}

// Unique is the number of distinct cards.
func (d *Deck) Unique() int {
	return len(d.entries)
}

// Entries returns the (index, count) pairs in ascending index order.
func (d *Deck) Entries() []Entry {
	return slices.Clone(d.entries)
}

func (d *Deck) Clone() *Deck {
	return &Deck{limits: d.limits, entries: slices.Clone(d.entries), size: d.size}
}

func (d *Deck) Equal(other *Deck) bool {
	return other != nil && d.limits == other.limits && slices.Equal(d.entries, other.entries)
}

// Curve buckets every copy by cost. Costs below 1 land in the first bucket
// and costs above bucketCount in the last one.
func (d *Deck) Curve(bucketCount int, costs CostLookup) []int {
	curve := make([]int, bucketCount)
	if bucketCount <= 0 {
		return curve
	}
	for _, e := range d.entries {
		cost := min(max(costs.CostAt(e.Index), 1), bucketCount)
		curve[cost-1] += e.Count
	}
	return curve
}

// RandomFill draws uniform pool indices until the deck is complete. Draws on
// capped cards are simply drawn again.
func (d *Deck) RandomFill(r rng.Source) {
	for d.size < d.limits.TargetSize {
		d.Add(r.IntRange(0, d.limits.PoolSize))
	}
}

// SelectWeightedIndex picks a card with probability proportional to its copy
// count.
func (d *Deck) SelectWeightedIndex(r rng.Source) (int, error) {
	if d.size == 0 {
		return 0, ErrEmptyDeck
	}
	roll := r.IntRange(1, d.size+1)
	acc := 0
	for _, e := range d.entries {
		acc += e.Count
		if acc >= roll {
			return e.Index, nil
		}
	}
	return d.entries[len(d.entries)-1].Index, nil
}

// Random returns a freshly filled deck.
func Random(limits Limits, r rng.Source) *Deck {
	d := New(limits)
	d.RandomFill(r)
	return d
}
