package layout

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/windlayout/internal/optimization"
)

func testScenario() *Scenario {
	return &Scenario{Width: 1000, Height: 1000, R: 40, MaxTurbines: 5}
}

// randomPopulation draws n individuals with size uniform coordinates each.
func randomPopulation(s *Scenario, rng *rand.Rand, n, size int) Population {
	pop := make(Population, n)
	for i := range pop {
		coords := make([]Coordinate, size)
		for j := range coords {
			coords[j] = s.RandomCoordinate(rng)
		}
		pop[i] = NewIndividual(coords)
	}
	return pop
}

// assertSeparated checks every pair is at least the minimum distance apart.
func assertSeparated(t *testing.T, ind *Individual, s *Scenario) {
	t.Helper()
	for i := 0; i < ind.Len(); i++ {
		for j := i + 1; j < ind.Len(); j++ {
			d := ind.At(i).Distance(ind.At(j))
			assert.GreaterOrEqual(t, d, s.MinDistance(), "pair (%d,%d) too close", i, j)
		}
	}
}

func TestCollides(t *testing.T) {
	s := testScenario()
	s.Obstacles = []Obstacle{{XMin: 800, YMin: 800, XMax: 900, YMax: 900}}
	existing := []Coordinate{{X: 100, Y: 100}}

	tests := []struct {
		name string
		x, y float64
		want bool
	}{
		{"far from everything", 500, 500, false},
		{"on top of a turbine", 100, 100, true},
		{"just inside spacing", 100 + 320, 100, true},
		{"just outside padded spacing", 100 + 320*SpacingEpsilon + 0.01, 100, false},
		{"inside obstacle", 850, 850, true},
		{"on obstacle border", 800, 850, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Collides(tt.x, tt.y, existing, s))
		})
	}
}

func TestCollidesEmptyLayout(t *testing.T) {
	s := testScenario()
	assert.False(t, Collides(10, 10, nil, s))
}

func TestRepairProducesFeasibleLayouts(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := testScenario()
	s.Obstacles = []Obstacle{{XMin: 0, YMin: 0, XMax: 300, YMax: 1000}}
	pop := randomPopulation(s, rng, 10, s.MaxTurbines)

	report, err := Repair(context.Background(), pop, s, rng, RepairOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Unresolved)

	for _, ind := range pop {
		require.Equal(t, s.MaxTurbines, ind.Len())
		assert.True(t, Feasible(ind, s))
		assertSeparated(t, ind, s)
		for _, c := range ind.Layout() {
			assert.True(t, s.InBounds(c))
			assert.False(t, s.OnObstacle(c.X, c.Y))
		}
	}
}

func TestRepairIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s := testScenario()
	pop := randomPopulation(s, rng, 5, s.MaxTurbines)

	_, err := Repair(context.Background(), pop, s, rng, RepairOptions{})
	require.NoError(t, err)

	before := make([][]Coordinate, len(pop))
	for i, ind := range pop {
		before[i] = ind.Layout()
	}

	report, err := Repair(context.Background(), pop, s, rng, RepairOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Redraws)
	for i, ind := range pop {
		assert.Equal(t, before[i], ind.Layout())
	}
}

func TestRepairInvalidatesFitness(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := testScenario()
	ind := NewIndividual([]Coordinate{{X: 10, Y: 10}, {X: 11, Y: 11}})
	ind.SetFitness(42)

	report, err := Repair(context.Background(), Population{ind}, s, rng, RepairOptions{})
	require.NoError(t, err)
	assert.Positive(t, report.Redraws)
	assert.False(t, ind.Scored())
}

func TestRepairRedrawsOutOfBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	s := testScenario()
	ind := NewIndividual([]Coordinate{{X: 5000, Y: 5000}, {X: -300, Y: 200}, {X: 500, Y: 500}})

	report, err := Repair(context.Background(), Population{ind}, s, rng, RepairOptions{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Redraws, 2)
	assert.Equal(t, 3, ind.Len())
	assert.True(t, Feasible(ind, s))
	for _, c := range ind.Layout() {
		assert.True(t, s.InBounds(c))
	}
}

func TestRepairStopsAtAttemptCap(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	// A 100x100 site cannot hold two turbines 320 apart.
	s := &Scenario{Width: 100, Height: 100, R: 40, MaxTurbines: 2}
	ind := NewIndividual([]Coordinate{{X: 10, Y: 10}, {X: 90, Y: 90}})

	report, err := Repair(context.Background(), Population{ind}, s, rng, RepairOptions{MaxAttempts: 5})
	require.Error(t, err)
	assert.True(t, optimization.IsInfeasibleScenario(err))
	assert.Equal(t, 2, report.Unresolved)
	assert.Equal(t, 1, report.Individuals)
	assert.Equal(t, 10, report.Redraws)
	assert.Equal(t, 2, ind.Len())
}

func TestRepairHonoursCancellation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := &Scenario{Width: 100, Height: 100, R: 40, MaxTurbines: 2}
	ind := NewIndividual([]Coordinate{{X: 10, Y: 10}, {X: 90, Y: 90}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Repair(ctx, Population{ind}, s, rng, RepairOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoveIllegalCoordinates(t *testing.T) {
	s := testScenario()
	coords := []Coordinate{{X: 50, Y: 50}, {X: 500, Y: 500}, {X: 150, Y: 150}}

	t.Run("no obstacles", func(t *testing.T) {
		ind := NewIndividual(coords)
		ind.SetFitness(1)
		assert.Zero(t, RemoveIllegalCoordinates(ind, s))
		assert.Equal(t, 3, ind.Len())
		assert.True(t, ind.Scored())
	})

	t.Run("drops coordinates on obstacles", func(t *testing.T) {
		withObstacle := *s
		withObstacle.Obstacles = []Obstacle{{XMin: 0, YMin: 0, XMax: 200, YMax: 200}}
		ind := NewIndividual(coords)
		ind.SetFitness(1)

		assert.Equal(t, 2, RemoveIllegalCoordinates(ind, &withObstacle))
		assert.Equal(t, []Coordinate{{X: 500, Y: 500}}, ind.Layout())
		assert.False(t, ind.Scored())
	})
}

func TestFeasible(t *testing.T) {
	s := testScenario()

	tests := []struct {
		name   string
		coords []Coordinate
		want   bool
	}{
		{"empty", nil, true},
		{"well spaced", []Coordinate{{X: 0, Y: 0}, {X: 400, Y: 0}}, true},
		{"too close", []Coordinate{{X: 0, Y: 0}, {X: 100, Y: 0}}, false},
		{"out of bounds", []Coordinate{{X: -1, Y: 0}}, false},
		{"too many", []Coordinate{{0, 0}, {400, 0}, {800, 0}, {0, 400}, {400, 400}, {800, 400}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Feasible(NewIndividual(tt.coords), s))
		})
	}
}
