package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/fitness"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2000.0, f.Site.Width)
	assert.Equal(t, 2000.0, f.Site.Height)
	assert.Equal(t, 38.5, f.Site.R)
	assert.Equal(t, 12, f.Site.MaxTurbines)
	assert.Empty(t, f.Site.Obstacles)
	assert.Len(t, f.Wind.States, 8)
	assert.Equal(t, fitness.DefaultWindModel().Thrust, f.Wind.Thrust)
	assert.NoError(t, f.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
site:
  width: 1000
  max_turbines: 5
  obstacles:
    - {xmin: 0, ymin: 0, xmax: 100, ymax: 200}
wind:
  states:
    - {angle: 270, speed: 10, probability: 1}
`)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, f.Site.Width)
	assert.Equal(t, 2000.0, f.Site.Height, "untouched keys keep their defaults")
	assert.Equal(t, 5, f.Site.MaxTurbines)
	assert.Equal(t, []layout.Obstacle{{XMin: 0, YMin: 0, XMax: 100, YMax: 200}}, f.Site.Obstacles)
	assert.Equal(t, []fitness.WindState{{Angle: 270, Speed: 10, Probability: 1}}, f.Wind.States)
	assert.Equal(t, 0.075, f.Wind.WakeDecay)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "site: [1, 2"},
		{"invalid site", "site:\n  width: -5\n"},
		{"probabilities", "wind:\n  states:\n    - {angle: 0, speed: 10, probability: 0.5}\n"},
		{"negative cost", "cost:\n  turbine: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)
	f.Site.MaxTurbines = 3
	f.Site.Obstacles = []layout.Obstacle{{XMin: 1, YMin: 2, XMax: 3, YMax: 4}}

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, f.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f, loaded)
}

func TestEvaluator(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		objective string
		direction optimization.Direction
		wantType  interface{}
	}{
		{"", optimization.Maximize, &fitness.Park{}},
		{ObjectivePower, optimization.Maximize, &fitness.Park{}},
		{ObjectiveCost, optimization.Minimize, &fitness.CostOfEnergy{}},
	}

	for _, tt := range tests {
		t.Run(tt.objective, func(t *testing.T) {
			e, d, err := f.Evaluator(tt.objective)
			require.NoError(t, err)
			assert.Equal(t, tt.direction, d)
			assert.IsType(t, tt.wantType, e)
		})
	}

	_, _, err = f.Evaluator("noise")
	assert.Error(t, err)
}
