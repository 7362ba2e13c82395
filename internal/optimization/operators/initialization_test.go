package operators

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/fitness"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

func siteScenario() *layout.Scenario {
	return &layout.Scenario{Width: 1000, Height: 1000, R: 40, MaxTurbines: 5}
}

func parkScorer(t *testing.T, s *layout.Scenario) *fitness.Adapter {
	t.Helper()
	park, err := fitness.NewPark(s.R, fitness.DefaultWindModel())
	require.NoError(t, err)
	return fitness.NewAdapter(park, nil)
}

// assertPairwiseSeparated checks the minimum distance between all pairs.
func assertPairwiseSeparated(t *testing.T, ind *layout.Individual, s *layout.Scenario) {
	t.Helper()
	for i := 0; i < ind.Len(); i++ {
		for j := i + 1; j < ind.Len(); j++ {
			assert.GreaterOrEqual(t, ind.At(i).Distance(ind.At(j)), s.MinDistance())
		}
	}
}

func TestRandomRepairInitialize(t *testing.T) {
	s := siteScenario()
	rng := rand.New(rand.NewSource(42))
	scorer := parkScorer(t, s)

	pop, err := (&RandomRepair{}).Initialize(context.Background(), scorer, s, 3, rng)
	require.NoError(t, err)
	require.Len(t, pop, 3)

	for _, ind := range pop {
		assert.Equal(t, 5, ind.Len())
		assertPairwiseSeparated(t, ind, s)
		for _, c := range ind.Layout() {
			assert.True(t, s.InBounds(c))
		}
		f, ok := ind.Fitness()
		assert.True(t, ok)
		assert.False(t, math.IsNaN(f) || math.IsInf(f, 0))
	}
	assert.Equal(t, 3, scorer.Evaluations())
}

func TestConstrainedInitialize(t *testing.T) {
	s := siteScenario()
	s.Obstacles = []layout.Obstacle{{XMin: 0, YMin: 0, XMax: 200, YMax: 200}}
	rng := rand.New(rand.NewSource(5))

	pop, err := (&Constrained{}).Initialize(context.Background(), parkScorer(t, s), s, 10, rng)
	require.NoError(t, err)
	require.Len(t, pop, 10)

	for _, ind := range pop {
		assert.GreaterOrEqual(t, ind.Len(), 4)
		assert.LessOrEqual(t, ind.Len(), 5)
		assert.True(t, layout.Feasible(ind, s))
		assert.True(t, ind.Scored())
	}
}

func TestConstrainedInitializeDenseSiteWarns(t *testing.T) {
	// Only one turbine fits on a 100x100 site at 320 spacing.
	s := &layout.Scenario{Width: 100, Height: 100, R: 40, MaxTurbines: 3}
	rng := rand.New(rand.NewSource(5))

	pop, err := (&Constrained{MaxAttempts: 20}).Initialize(context.Background(), parkScorer(t, s), s, 2, rng)
	require.Error(t, err)
	assert.True(t, optimization.IsInfeasibleScenario(err))
	require.Len(t, pop, 2)
	for _, ind := range pop {
		assert.Equal(t, 1, ind.Len())
		assert.True(t, ind.Scored())
	}
}

func TestRandomRepairDenseSiteWarns(t *testing.T) {
	s := &layout.Scenario{Width: 100, Height: 100, R: 40, MaxTurbines: 2}
	rng := rand.New(rand.NewSource(5))

	init := &RandomRepair{Repair: layout.RepairOptions{MaxAttempts: 3}}
	pop, err := init.Initialize(context.Background(), parkScorer(t, s), s, 2, rng)
	assert.True(t, optimization.IsInfeasibleScenario(err))
	require.Len(t, pop, 2)
	assert.True(t, pop[0].Scored())
}

func TestInitializeCancelled(t *testing.T) {
	s := siteScenario()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Constrained{}).Initialize(ctx, parkScorer(t, s), s, 3, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInitializeEmptyPopulation(t *testing.T) {
	s := siteScenario()
	rng := rand.New(rand.NewSource(1))

	for _, init := range []Initializer{&RandomRepair{}, &Constrained{}} {
		pop, err := init.Initialize(context.Background(), parkScorer(t, s), s, 0, rng)
		require.NoError(t, err)
		assert.Empty(t, pop)
	}
}

func TestTargetCount(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		n := TargetCount(8, rng)
		assert.GreaterOrEqual(t, n, 6)
		assert.LessOrEqual(t, n, 8)
		seen[n] = true
	}
	assert.Len(t, seen, 3)
	assert.Zero(t, TargetCount(0, rng))
}
