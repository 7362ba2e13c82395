// Package metrics exposes Prometheus metrics for layout optimization runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/windlayout/internal/optimization"
)

const namespace = "windlayout"

// Run outcomes used as the status label of runs_total.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Recorder holds the service's collectors.
type Recorder struct {
	runs        *prometheus.CounterVec
	activeRuns  prometheus.Gauge
	generations prometheus.Counter
	redraws     prometheus.Counter
	warnings    prometheus.Counter
	bestFitness *prometheus.GaugeVec
	turbines    *prometheus.GaugeVec
	evaluations *prometheus.GaugeVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished optimization runs by outcome.",
		}, []string{"status"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Optimization runs in progress.",
		}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generations completed across all runs.",
		}),
		redraws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repair_redraws_total",
			Help:      "Coordinates redrawn by constraint repair.",
		}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "infeasible_warnings_total",
			Help:      "Repair or sampling passes that hit their attempt cap.",
		}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness seen so far by a running optimization.",
		}, []string{"run_id"}),
		turbines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_turbines",
			Help:      "Mean turbine count of the current population.",
		}, []string{"run_id"}),
		evaluations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluations",
			Help:      "Fitness evaluations performed by a running optimization.",
		}, []string{"run_id"}),
	}

	for _, c := range []prometheus.Collector{
		r.runs, r.activeRuns, r.generations, r.redraws, r.warnings,
		r.bestFitness, r.turbines, r.evaluations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RunStarted marks a run as active.
func (r *Recorder) RunStarted(runID string) {
	r.activeRuns.Inc()
}

// RunFinished counts the run under status and drops its per-run series.
func (r *Recorder) RunFinished(runID, status string) {
	r.activeRuns.Dec()
	r.runs.WithLabelValues(status).Inc()
	r.bestFitness.DeleteLabelValues(runID)
	r.turbines.DeleteLabelValues(runID)
	r.evaluations.DeleteLabelValues(runID)
}

// ForRun returns an observer that records a single run's progress.
func (r *Recorder) ForRun(runID string) *RunObserver {
	return &RunObserver{recorder: r, runID: runID}
}

// RunObserver feeds generation statistics of one run into the Recorder.
type RunObserver struct {
	recorder *Recorder
	runID    string
}

// OnGeneration records a completed generation.
func (o *RunObserver) OnGeneration(stats optimization.GenerationStats) {
	r := o.recorder
	r.generations.Inc()
	r.redraws.Add(float64(stats.Redraws))
	r.bestFitness.WithLabelValues(o.runID).Set(stats.BestEver)
	r.turbines.WithLabelValues(o.runID).Set(stats.MeanTurbines)
	r.evaluations.WithLabelValues(o.runID).Set(float64(stats.Evaluations))
}

// OnWarning counts an infeasible-scenario warning.
func (o *RunObserver) OnWarning(error) {
	o.recorder.warnings.Inc()
}
