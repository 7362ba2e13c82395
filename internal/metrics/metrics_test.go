package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/windlayout/internal/optimization"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestRecorderRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
}

func TestRunObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	require.NoError(t, err)

	rec.RunStarted("run-1")
	obs := rec.ForRun("run-1")
	obs.OnGeneration(optimization.GenerationStats{Generation: 0, BestEver: 10, MeanTurbines: 4, Evaluations: 20, Redraws: 3})
	obs.OnGeneration(optimization.GenerationStats{Generation: 1, BestEver: 12, MeanTurbines: 5, Evaluations: 40, Redraws: 2})
	obs.OnWarning(errors.New("too dense"))

	families := gather(t, reg)
	assert.Equal(t, 2.0, families["windlayout_generations_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 5.0, families["windlayout_repair_redraws_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, families["windlayout_infeasible_warnings_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, families["windlayout_active_runs"].GetMetric()[0].GetGauge().GetValue())

	best := families["windlayout_best_fitness"].GetMetric()
	require.Len(t, best, 1)
	assert.Equal(t, 12.0, best[0].GetGauge().GetValue())
	assert.Equal(t, "run_id", best[0].GetLabel()[0].GetName())
	assert.Equal(t, "run-1", best[0].GetLabel()[0].GetValue())
	assert.Equal(t, 40.0, families["windlayout_evaluations"].GetMetric()[0].GetGauge().GetValue())
}

func TestRunFinished(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	require.NoError(t, err)

	rec.RunStarted("a")
	rec.ForRun("a").OnGeneration(optimization.GenerationStats{BestEver: 1})
	rec.RunStarted("b")
	rec.RunFinished("a", StatusCompleted)
	rec.RunFinished("b", StatusCancelled)

	families := gather(t, reg)
	assert.Equal(t, 0.0, families["windlayout_active_runs"].GetMetric()[0].GetGauge().GetValue())
	assert.NotContains(t, families, "windlayout_best_fitness")

	runs := map[string]float64{}
	for _, m := range families["windlayout_runs_total"].GetMetric() {
		runs[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{StatusCompleted: 1, StatusCancelled: 1}, runs)
}
