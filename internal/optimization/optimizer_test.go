package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirection(t *testing.T) {
	tests := []struct {
		dir         Direction
		name        string
		better      [2]float64
		improvement float64
	}{
		{Maximize, "maximize", [2]float64{2, 1}, 3},
		{Minimize, "minimize", [2]float64{1, 2}, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.dir.String())
			assert.True(t, tt.dir.Better(tt.better[0], tt.better[1]))
			assert.False(t, tt.dir.Better(tt.better[1], tt.better[0]))
			assert.False(t, tt.dir.Better(tt.better[0], tt.better[0]))
			assert.Equal(t, tt.improvement, tt.dir.Improvement(1, 4))
		})
	}
}

func TestSolutionTurbines(t *testing.T) {
	var nilSolution *Solution
	assert.Zero(t, nilSolution.Turbines())
	assert.Equal(t, 2, (&Solution{Layout: [][2]float64{{0, 0}, {1, 1}}}).Turbines())
}
