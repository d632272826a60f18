// Package fitness scores complete decks against a target cost curve, a
// requested archetype and a consistency preference.
package fitness

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/efinauri/shadowbuilder/internal/deck"
)

// DefaultIdealCurve is a 40 card curve over costs 1..8+.
var DefaultIdealCurve = []float64{4, 14, 6, 5, 4, 3, 2, 2}

type Weights struct {
	Curve       float64 `json:"curve"`
	Tags        float64 `json:"tags"`
	Consistency float64 `json:"consistency"`
}

func DefaultWeights() Weights {
	return Weights{Curve: 0.4, Tags: 0.4, Consistency: 0.2}
}

func (w Weights) Sum() float64 {
	return w.Curve + w.Tags + w.Consistency
}

type Config struct {
	// IdealCurve also fixes the bucket count.
	IdealCurve []float64 `json:"ideal_curve"`
	Weights    Weights   `json:"weights"`
	// ConsistencyOffset is the number of distinct cards above the minimum at
	// which the consistency score reaches 0. Zero derives it from the limits.
	ConsistencyOffset int      `json:"consistency_offset,omitempty"`
	Tags              []string `json:"tags"`
}

// Pool is the catalog view the evaluator reads.
type Pool interface {
	Size() int
	CostAt(index int) int
	TagsAt(index int) []string
}

// Breakdown carries the weighted total and its unweighted components.
type Breakdown struct {
	Curve       float64 `json:"curve"`
	Tags        float64 `json:"tags"`
	Consistency float64 `json:"consistency"`
	Total       float64 `json:"total"`
}

type Evaluator struct {
	limits    deck.Limits
	pool      Pool
	ideal     []float64
	idealNorm float64
	cosMin    float64
	weights   Weights
	tags      map[string]struct{}
	minUnique int
	offset    int
}

func NewEvaluator(cfg Config, limits deck.Limits, pool Pool) (*Evaluator, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, errors.New("fitness pool is required")
	}
	if pool.Size() < limits.PoolSize {
		return nil, fmt.Errorf("pool has %d cards, limits expect %d", pool.Size(), limits.PoolSize)
	}
	if len(cfg.IdealCurve) == 0 {
		return nil, errors.New("ideal curve must have at least one bucket")
	}
	for i, v := range cfg.IdealCurve {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("ideal curve bucket %d is invalid: %v", i, v)
		}
	}
	norm := floats.Norm(cfg.IdealCurve, 2)
	if norm == 0 {
		return nil, errors.New("ideal curve must not be all zero")
	}
	w := cfg.Weights
	if w.Curve < 0 || w.Tags < 0 || w.Consistency < 0 {
		return nil, fmt.Errorf("fitness weights must be >= 0, got %+v", w)
	}
	if cfg.ConsistencyOffset < 0 {
		return nil, fmt.Errorf("consistency offset must be >= 0, got %d", cfg.ConsistencyOffset)
	}

	minUnique := limits.MinUnique()
	offset := cfg.ConsistencyOffset
	if offset == 0 {
		offset = limits.TargetSize - minUnique
	}
	tags := make(map[string]struct{}, len(cfg.Tags))
	for _, tag := range cfg.Tags {
		tags[tag] = struct{}{}
	}

	ideal := append([]float64(nil), cfg.IdealCurve...)
	// Cosine against the ideal is quasiconcave over non-negative curves, so
	// its minimum sits on a single-bucket deck.
	cosMin := floats.Min(ideal) / norm
	return &Evaluator{
		limits:    limits,
		pool:      pool,
		ideal:     ideal,
		idealNorm: norm,
		cosMin:    cosMin,
		weights:   w,
		tags:      tags,
		minUnique: minUnique,
		offset:    offset,
	}, nil
}

func (e *Evaluator) BucketCount() int {
	return len(e.ideal)
}

// CosMin is the lowest cosine similarity any deck can reach against the
// ideal curve.
func (e *Evaluator) CosMin() float64 {
	return e.cosMin
}

func (e *Evaluator) Rate(d *deck.Deck) float64 {
	return e.Breakdown(d).Total
}

func (e *Evaluator) Breakdown(d *deck.Deck) Breakdown {
	b := Breakdown{
		Curve:       e.CurveScore(d),
		Tags:        e.TagScore(d),
		Consistency: e.ConsistencyScore(d),
	}
	b.Total = e.weights.Curve*b.Curve + e.weights.Tags*b.Tags + e.weights.Consistency*b.Consistency
	return b
}

// CurveScore rescales the cosine similarity between the deck curve and the
// ideal from [cosMin, 1] to [0, 1].
func (e *Evaluator) CurveScore(d *deck.Deck) float64 {
	counts := d.Curve(len(e.ideal), e.pool)
	v := make([]float64, len(counts))
	for i, c := range counts {
		v[i] = float64(c)
	}
	vNorm := floats.Norm(v, 2)
	if vNorm == 0 {
		return 0
	}
	cos := floats.Dot(e.ideal, v) / (e.idealNorm * vNorm)
	span := 1 - e.cosMin
	if span <= 1e-12 {
		return 1
	}
	return clamp01((cos - e.cosMin) / span)
}

// TagScore is the fraction of copies whose card carries a requested tag.
func (e *Evaluator) TagScore(d *deck.Deck) float64 {
	if len(e.tags) == 0 {
		return 0
	}
	hits := 0
	for _, entry := range d.Entries() {
		for _, tag := range e.pool.TagsAt(entry.Index) {
			if _, ok := e.tags[tag]; ok {
				hits += entry.Count
				break
			}
		}
	}
	return float64(hits) / float64(e.limits.TargetSize)
}

// ConsistencyScore is 1 at the fewest possible distinct cards and falls
// linearly to 0 at minUnique+offset distinct cards.
func (e *Evaluator) ConsistencyScore(d *deck.Deck) float64 {
	unique := d.Unique()
	if e.offset <= 0 {
		if unique <= e.minUnique {
			return 1
		}
		return 0
	}
	return clamp01(float64(e.minUnique+e.offset-unique) / float64(e.offset))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
