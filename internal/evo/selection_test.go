package evo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efinauri/shadowbuilder/internal/rng"
)

// rejectingSource always draws the last index and never accepts.
type rejectingSource struct{}

func (rejectingSource) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return hi - 1
}
func (rejectingSource) Float64() float64 { return 0.99 }
func (rejectingSource) Chance(float64) bool { return false }

func ranked(scores ...float64) []ScoredDeck {
	out := make([]ScoredDeck, len(scores))
	for i, s := range scores {
		out[i] = ScoredDeck{Fitness: s}
	}
	return out
}

func TestStochasticAcceptanceFollowsFitness(t *testing.T) {
	r := rng.New(42)
	pool := ranked(1.0, 0.1)
	const draws = 20000
	top := 0
	for i := 0; i < draws; i++ {
		idx, err := StochasticAcceptanceSelector{}.PickParent(r, pool, 2)
		require.NoError(t, err)
		if idx == 0 {
			top++
		}
	}
	assert.InDelta(t, 1/1.1, float64(top)/draws, 0.02)
}

func TestStochasticAcceptanceStaysInPrefix(t *testing.T) {
	r := rng.New(1)
	pool := ranked(0.9, 0.8, 0.7, 0.6, 0.5)
	for i := 0; i < 500; i++ {
		idx, err := StochasticAcceptanceSelector{}.PickParent(r, pool, 3)
		require.NoError(t, err)
		require.Less(t, idx, 3)
	}
}

func TestStochasticAcceptanceZeroMaxIsUniform(t *testing.T) {
	idx, err := StochasticAcceptanceSelector{}.PickParent(rng.New(1), ranked(0, 0, 0), 3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 3)
}

func TestStochasticAcceptanceExhausts(t *testing.T) {
	_, err := StochasticAcceptanceSelector{MaxAttempts: 5}.PickParent(rejectingSource{}, ranked(1, 0.5), 2)
	require.ErrorIs(t, err, ErrSelectionExhausted)
}

func TestSelectorsRejectBadSelectable(t *testing.T) {
	pool := ranked(1, 0.5)
	for _, s := range []Selector{StochasticAcceptanceSelector{}, EliteSelector{}, TournamentSelector{}} {
		_, err := s.PickParent(rng.New(1), pool, 0)
		require.Error(t, err, s.Name())
		_, err = s.PickParent(rng.New(1), pool, 3)
		require.Error(t, err, s.Name())
		_, err = s.PickParent(nil, pool, 1)
		require.Error(t, err, s.Name())
	}
}

func TestTournamentPrefersFitter(t *testing.T) {
	r := rng.New(9)
	pool := ranked(0.9, 0.5, 0.4, 0.3)
	counts := make([]int, len(pool))
	for i := 0; i < 2000; i++ {
		idx, err := TournamentSelector{TournamentSize: 3}.PickParent(r, pool, 4)
		require.NoError(t, err)
		counts[idx]++
	}
	assert.Greater(t, counts[0], counts[3])
}

func TestSelectorByName(t *testing.T) {
	s, err := SelectorByName("")
	require.NoError(t, err)
	assert.Equal(t, "stochastic_acceptance", s.Name())
	for _, name := range SelectorNames() {
		s, err := SelectorByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err = SelectorByName("roulette")
	require.ErrorIs(t, err, ErrSelectorNotFound)
	assert.Equal(t, []string{"elite", "stochastic_acceptance", "tournament"}, SelectorNames())
}

func TestCullThresholdAnneals(t *testing.T) {
	c := CullParams{Base: 0.1, Annealing: 0.05, Cap: 0.3}
	assert.InDelta(t, 0.1, c.Threshold(0), 1e-12)
	assert.InDelta(t, 0.2, c.Threshold(2), 1e-12)
	assert.InDelta(t, 0.3, c.Threshold(100), 1e-12)
	require.Error(t, CullParams{Cap: -1}.Validate())
	require.NoError(t, DefaultCullParams().Validate())
}
