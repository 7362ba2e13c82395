package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/windlayout/internal/optimization"
)

func scored(f float64, coords ...Coordinate) *Individual {
	ind := NewIndividual(coords)
	ind.SetFitness(f)
	return ind
}

func TestBest(t *testing.T) {
	pop := Population{scored(3), scored(9), scored(1), scored(9)}

	tests := []struct {
		name      string
		direction optimization.Direction
		wantIndex int
	}{
		{"maximize keeps first of ties", optimization.Maximize, 1},
		{"minimize", optimization.Minimize, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := pop.BestIndex(tt.direction)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIndex, idx)

			best, err := Best(pop, tt.direction)
			require.NoError(t, err)
			assert.Same(t, pop[tt.wantIndex], best)
		})
	}
}

func TestBestEmptyPopulation(t *testing.T) {
	best, err := Best(nil, optimization.Maximize)
	assert.Nil(t, best)
	require.Error(t, err)
	assert.ErrorIs(t, err, optimization.ErrEmptyPopulation)

	_, ok := optimization.IsOptimizationError(err)
	assert.True(t, ok)
}

func TestBestRejectsStaleFitness(t *testing.T) {
	stale := scored(5, Coordinate{X: 1, Y: 1})
	stale.Set(0, Coordinate{X: 2, Y: 2})

	_, err := Best(Population{scored(1), stale}, optimization.Maximize)
	assert.ErrorIs(t, err, optimization.ErrStaleFitness)
}

func TestSortByFitness(t *testing.T) {
	pop := Population{scored(2), scored(5), scored(1)}

	require.NoError(t, SortByFitness(pop, optimization.Maximize))
	got, err := pop.Fitnesses()
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 2, 1}, got)

	require.NoError(t, SortByFitness(pop, optimization.Minimize))
	got, err = pop.Fitnesses()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 5}, got)
}

func TestIndividualMutationsInvalidateFitness(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ind *Individual)
	}{
		{"set", func(ind *Individual) { ind.Set(0, Coordinate{X: 9, Y: 9}) }},
		{"append", func(ind *Individual) { ind.Append(Coordinate{X: 9, Y: 9}) }},
		{"remove", func(ind *Individual) { ind.Remove(0) }},
		{"retain", func(ind *Individual) { ind.Retain(func(Coordinate) bool { return false }) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := scored(1, Coordinate{X: 1, Y: 1}, Coordinate{X: 2, Y: 2})
			tt.mutate(ind)
			_, ok := ind.Fitness()
			assert.False(t, ok)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := scored(4, Coordinate{X: 1, Y: 2})
	clone := orig.Clone()
	clone.Set(0, Coordinate{X: 7, Y: 7})

	assert.Equal(t, Coordinate{X: 1, Y: 2}, orig.At(0))
	assert.True(t, orig.Scored())
	assert.False(t, clone.Scored())

	pop := Population{orig}.Clone()
	assert.NotSame(t, orig, pop[0])
	assert.Equal(t, orig.Layout(), pop[0].Layout())
}

func TestLayoutReturnsCopy(t *testing.T) {
	ind := NewIndividual([]Coordinate{{X: 1, Y: 1}})
	coords := ind.Layout()
	coords[0].X = 100
	assert.Equal(t, 1.0, ind.At(0).X)
	assert.Equal(t, [][2]float64{{1, 1}}, ind.Points())
}
