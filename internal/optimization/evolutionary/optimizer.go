// Package evolutionary implements the generational layout search.
package evolutionary

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/fitness"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
	"github.com/copyleftdev/windlayout/internal/optimization/operators"
)

// Store persists populations between runs.
type Store interface {
	Load(name string) (layout.Population, error)
	Save(name string, pop layout.Population) error
}

// Observer is notified as a run progresses. Calls happen on the
// optimizer's goroutine.
type Observer interface {
	OnGeneration(stats optimization.GenerationStats)
	OnWarning(err error)
}

// Config holds the configuration of a single run.
type Config struct {
	Evaluator  fitness.Evaluator
	Scenario   *layout.Scenario
	Strategies operators.Strategies

	PopulationSize int
	Generations    int
	Direction      optimization.Direction

	// RandomSeed seeds the run's only random source; 0 seeds from the clock.
	RandomSeed int64

	// Repair bounds the redraws spent on loaded populations and children.
	Repair layout.RepairOptions

	// Store with LoadFrom replaces initialization with a saved population;
	// with SaveTo the final population is written back.
	Store    Store
	LoadFrom string
	SaveTo   string

	Observer Observer
	Logger   *zap.Logger
}

// Result is the outcome of a run.
type Result struct {
	// Best is the best individual of the final population.
	Best *optimization.Solution `json:"best"`
	// BestEver is the best individual seen in any generation.
	BestEver *optimization.Solution `json:"best_ever"`

	InitialFitness float64 `json:"initial_fitness"`
	FinalFitness   float64 `json:"final_fitness"`
	// Improvement is positive when the final best beats the initial best.
	Improvement float64 `json:"improvement"`

	Generations int                            `json:"generations"`
	Evaluations int                            `json:"evaluations"`
	History     []optimization.GenerationStats `json:"history"`
	Warnings    []string                       `json:"warnings,omitempty"`
	Cancelled   bool                           `json:"cancelled"`
	Duration    time.Duration                  `json:"duration"`
}

// Optimizer runs the evolutionary search. It is safe to poll from other
// goroutines while Optimize runs.
type Optimizer struct {
	config  Config
	adapter *fitness.Adapter
	rng     *rand.Rand
	logger  *zap.Logger

	mu       sync.RWMutex
	bestEver *optimization.Solution
	history  []optimization.GenerationStats
	cancel   context.CancelFunc
}

var _ optimization.Optimizer = (*Optimizer)(nil)

// NewOptimizer validates the configuration and fills in defaults.
func NewOptimizer(config Config) (*Optimizer, error) {
	if config.Evaluator == nil {
		return nil, optimization.NewError("evaluator is required").WithOperation("NewOptimizer")
	}
	if config.Scenario == nil {
		return nil, optimization.NewError("scenario is required").WithOperation("NewOptimizer")
	}
	if err := config.Scenario.Validate(); err != nil {
		return nil, optimization.WrapError(err, "invalid scenario").WithOperation("NewOptimizer")
	}
	if config.Generations < 0 {
		return nil, optimization.NewErrorf("generations must be non-negative, got %d", config.Generations).
			WithOperation("NewOptimizer")
	}
	if config.PopulationSize < 1 {
		config.PopulationSize = 20 // Default value
	}

	if err := fillStrategies(&config.Strategies); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("evolutionary")

	rng := rand.New(rand.NewSource(config.RandomSeed))
	if config.RandomSeed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Optimizer{
		config:  config,
		adapter: fitness.NewAdapter(config.Evaluator, logger),
		rng:     rng,
		logger:  logger,
		history: make([]optimization.GenerationStats, 0, config.Generations),
	}, nil
}

// fillStrategies replaces unset strategies with the defaults.
func fillStrategies(s *operators.Strategies) error {
	defaults, err := operators.DefaultSettings().Build()
	if err != nil {
		return err
	}
	if s.Initializer == nil {
		s.Initializer = defaults.Initializer
	}
	if s.Selector == nil {
		s.Selector = defaults.Selector
	}
	if s.Recombiner == nil {
		s.Recombiner = defaults.Recombiner
	}
	if s.Mutator == nil {
		s.Mutator = defaults.Mutator
	}
	if s.Replacer == nil {
		s.Replacer = defaults.Replacer
	}
	return nil
}

// Optimize runs the configured number of generations and returns the best
// layout found.
//
// When ctx is cancelled or Stop is called between generations the result
// so far is returned together with the context error. An empty final
// population yields an error wrapping optimization.ErrEmptyPopulation.
func (o *Optimizer) Optimize(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	start := time.Now()
	evalStart := o.adapter.Evaluations()
	res := &Result{}

	o.logger.Info("Starting layout optimization",
		zap.Int("population_size", o.config.PopulationSize),
		zap.Int("generations", o.config.Generations),
		zap.Stringer("direction", o.config.Direction),
		zap.Int("max_turbines", o.config.Scenario.MaxTurbines),
	)

	pop, err := o.initialize(ctx, res)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return o.interrupted(nil, res, start, evalStart, ctxErr)
		}
		return nil, err
	}

	if len(pop) > 0 {
		best, err := layout.Best(pop, o.config.Direction)
		if err != nil {
			return nil, err
		}
		res.InitialFitness, _ = best.Fitness()
		o.offer(best)
	}

	for g := 0; g < o.config.Generations; g++ {
		if err := ctx.Err(); err != nil {
			return o.interrupted(pop, res, start, evalStart, err)
		}

		next, stats, err := o.generation(ctx, g, pop, res)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return o.interrupted(pop, res, start, evalStart, ctxErr)
			}
			return nil, fmt.Errorf("generation %d: %w", g, err)
		}
		pop = next
		res.Generations++

		o.mu.Lock()
		o.history = append(o.history, stats)
		o.mu.Unlock()
		if o.config.Observer != nil {
			o.config.Observer.OnGeneration(stats)
		}
	}

	if err := o.finalize(pop, res, start, evalStart); err != nil {
		return nil, err
	}

	if o.config.Store != nil && o.config.SaveTo != "" {
		if err := o.config.Store.Save(o.config.SaveTo, pop); err != nil {
			return res, fmt.Errorf("saving population %q: %w", o.config.SaveTo, err)
		}
	}

	o.logger.Info("Layout optimization finished",
		zap.Float64("best", res.FinalFitness),
		zap.Float64("improvement", res.Improvement),
		zap.Int("turbines", res.Best.Turbines()),
		zap.Int("evaluations", res.Evaluations),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// initialize returns a scored starting population, either loaded from the
// store or built by the initializer.
func (o *Optimizer) initialize(ctx context.Context, res *Result) (layout.Population, error) {
	if o.config.Store != nil && o.config.LoadFrom != "" {
		pop, err := o.config.Store.Load(o.config.LoadFrom)
		if err != nil {
			return nil, fmt.Errorf("loading population %q: %w", o.config.LoadFrom, err)
		}
		// Saved layouts may come from another site.
		report, err := o.legalize(ctx, pop, res)
		if err != nil {
			return nil, fmt.Errorf("repairing loaded population: %w", err)
		}
		rescored, err := o.adapter.ScorePopulation(pop)
		if err != nil {
			return nil, fmt.Errorf("scoring loaded population: %w", err)
		}
		o.logger.Info("Loaded population",
			zap.String("name", o.config.LoadFrom),
			zap.Int("size", len(pop)),
			zap.Int("rescored", rescored),
			zap.Int("redraws", report.Redraws),
		)
		return pop, nil
	}

	pop, err := o.config.Strategies.Initializer.Initialize(ctx, o.adapter, o.config.Scenario, o.config.PopulationSize, o.rng)
	if err != nil {
		if !optimization.IsInfeasibleScenario(err) {
			return nil, fmt.Errorf("initializing population: %w", err)
		}
		o.warn(res, err)
	}
	return pop, nil
}

// generation runs one select, recombine, mutate, repair, score and replace
// cycle.
func (o *Optimizer) generation(ctx context.Context, g int, pop layout.Population, res *Result) (layout.Population, optimization.GenerationStats, error) {
	var stats optimization.GenerationStats
	s := o.config.Scenario
	d := o.config.Direction
	st := o.config.Strategies

	indices, err := st.Selector.Select(pop, d, o.rng)
	if err != nil {
		return nil, stats, err
	}
	children := st.Recombiner.Recombine(operators.Resolve(pop, indices), s, o.rng)

	for _, child := range children {
		st.Mutator.Mutate(child, s, o.rng)
	}

	report, err := o.legalize(ctx, children, res)
	if err != nil {
		return nil, stats, err
	}

	if _, err := o.adapter.ScorePopulation(children); err != nil {
		return nil, stats, err
	}

	next, err := st.Replacer.Replace(pop, children, d)
	if err != nil {
		return nil, stats, err
	}
	if len(next) == 0 {
		return nil, stats, optimization.EmptyPopulationError("Replace")
	}

	best, err := layout.Best(next, d)
	if err != nil {
		return nil, stats, err
	}
	o.offer(best)

	stats, err = o.summarize(g, next, report)
	if err != nil {
		return nil, stats, err
	}

	o.logger.Debug("Generation complete",
		zap.Int("generation", g),
		zap.Int("population_size", stats.PopulationSize),
		zap.Float64("best", stats.Best),
		zap.Float64("best_ever", stats.BestEver),
		zap.Float64("mean", stats.Mean),
		zap.Int("redraws", stats.Redraws),
	)
	return next, stats, nil
}

// legalize drops out-of-bounds and obstacle coordinates, truncates layouts
// to the site's turbine limit and repairs what is left. An
// infeasible-scenario warning is recorded and not returned.
func (o *Optimizer) legalize(ctx context.Context, pop layout.Population, res *Result) (layout.RepairReport, error) {
	s := o.config.Scenario
	for _, ind := range pop {
		layout.RemoveIllegalCoordinates(ind, s)
		for ind.Len() > s.MaxTurbines {
			ind.Remove(ind.Len() - 1)
		}
	}

	report, err := layout.Repair(ctx, pop, s, o.rng, o.config.Repair)
	if err != nil {
		if !optimization.IsInfeasibleScenario(err) {
			return report, err
		}
		o.warn(res, err)
	}
	return report, nil
}

func (o *Optimizer) summarize(g int, pop layout.Population, report layout.RepairReport) (optimization.GenerationStats, error) {
	fs, err := pop.Fitnesses()
	if err != nil {
		return optimization.GenerationStats{}, err
	}
	turbines := make([]float64, len(pop))
	for i, ind := range pop {
		turbines[i] = float64(ind.Len())
	}

	bestIdx, err := pop.BestIndex(o.config.Direction)
	if err != nil {
		return optimization.GenerationStats{}, err
	}

	mean, std := stat.MeanStdDev(fs, nil)
	if len(fs) < 2 {
		std = 0
	}

	o.mu.RLock()
	bestEver := o.bestEver.Value
	o.mu.RUnlock()

	return optimization.GenerationStats{
		Generation:     g,
		PopulationSize: len(pop),
		Best:           fs[bestIdx],
		BestEver:       bestEver,
		Mean:           mean,
		StdDev:         std,
		MeanTurbines:   stat.Mean(turbines, nil),
		Evaluations:    o.adapter.Evaluations(),
		Redraws:        report.Redraws,
		Unresolved:     report.Unresolved,
	}, nil
}

// finalize scans the final population for the returned best.
func (o *Optimizer) finalize(pop layout.Population, res *Result, start time.Time, evalStart int) error {
	res.Evaluations = o.adapter.Evaluations() - evalStart
	res.Duration = time.Since(start)
	res.History = o.GetHistory()
	res.BestEver = o.GetBestSolution()

	best, err := layout.Best(pop, o.config.Direction)
	if err != nil {
		return err
	}
	res.FinalFitness, _ = best.Fitness()
	res.Best = &optimization.Solution{Layout: best.Points(), Value: res.FinalFitness}
	res.Improvement = o.config.Direction.Improvement(res.InitialFitness, res.FinalFitness)
	return nil
}

// interrupted builds the best-so-far result of a cancelled run.
func (o *Optimizer) interrupted(pop layout.Population, res *Result, start time.Time, evalStart int, cause error) (*Result, error) {
	res.Cancelled = true
	if err := o.finalize(pop, res, start, evalStart); err != nil {
		o.logger.Warn("No result available after cancellation", zap.Error(err))
	}
	o.logger.Info("Layout optimization cancelled",
		zap.Int("generations", res.Generations),
		zap.Error(cause),
	)
	return res, cause
}

// offer records ind as the best ever if it improves on it.
func (o *Optimizer) offer(ind *layout.Individual) {
	f, ok := ind.Fitness()
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bestEver == nil || o.config.Direction.Better(f, o.bestEver.Value) {
		o.bestEver = &optimization.Solution{Layout: ind.Points(), Value: f}
	}
}

func (o *Optimizer) warn(res *Result, err error) {
	res.Warnings = append(res.Warnings, err.Error())
	o.logger.Warn("Infeasible scenario", zap.Error(err))
	if o.config.Observer != nil {
		o.config.Observer.OnWarning(err)
	}
}

// GetBestSolution returns the best solution found so far
func (o *Optimizer) GetBestSolution() *optimization.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.bestEver == nil {
		return nil
	}
	best := *o.bestEver
	best.Layout = append([][2]float64(nil), o.bestEver.Layout...)
	return &best
}

// GetHistory returns the statistics of every completed generation
func (o *Optimizer) GetHistory() []optimization.GenerationStats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]optimization.GenerationStats(nil), o.history...)
}

// Stop stops the optimization process
func (o *Optimizer) Stop() {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.cancel != nil {
		o.cancel()
	}
}
