package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/copyleftdev/windlayout/internal/errors"
	"github.com/copyleftdev/windlayout/internal/metrics"
	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/evolutionary"
	"github.com/copyleftdev/windlayout/internal/optimization/fitness"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

// Run statuses.
const (
	StatusPending    = "pending"
	StatusRunning    = "running"
	// StatusCancelling is set by a cancel request until the run's goroutine
	// has returned. It still counts against the run limit.
	StatusCancelling = "cancelling"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

var (
	errNotFound    = errors.New("layout run not found")
	errTerminal    = errors.New("layout run already finished")
	errTooManyRuns = errors.New("too many layout runs in progress")
)

// requestError marks an error caused by the client's input.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func invalid(format string, args ...interface{}) error {
	return &requestError{err: fmt.Errorf(format, args...)}
}

// StartRequest starts a layout run. Zero values fall back to the service
// defaults.
type StartRequest struct {
	Objective      string `json:"objective,omitempty"`
	PopulationSize int    `json:"population_size,omitempty"`
	Generations    int    `json:"generations,omitempty"`
	Seed           int64  `json:"seed,omitempty"`

	Initializer string `json:"initializer,omitempty"`
	Selector    string `json:"selector,omitempty"`
	Recombiner  string `json:"recombiner,omitempty"`
	Replacer    string `json:"replacer,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`

	// Site and Wind replace the service scenario for this run.
	Site *layout.Scenario   `json:"site,omitempty"`
	Wind *fitness.WindModel `json:"wind,omitempty"`

	// LoadFrom and SaveTo name populations in the store.
	LoadFrom string `json:"load_from,omitempty"`
	SaveTo   string `json:"save_to,omitempty"`
}

// LayoutState tracks one layout run. Fields are guarded by the server's
// mutex.
type LayoutState struct {
	ID          string
	Status      string
	Objective   string
	Direction   optimization.Direction
	Generations int
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Optimizer   optimization.Optimizer
	Result      *evolutionary.Result
	Err         string
	CancelFunc  context.CancelFunc

	done chan struct{}
}

func (st *LayoutState) terminal() bool {
	switch st.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// LayoutStatus is the externally visible state of a run.
type LayoutStatus struct {
	ID          string                         `json:"layout_id"`
	Status      string                         `json:"status"`
	Objective   string                         `json:"objective"`
	Direction   string                         `json:"direction"`
	Progress    float64                        `json:"progress"`
	StartTime   time.Time                      `json:"start_time"`
	EndTime     *time.Time                     `json:"end_time,omitempty"`
	LastUpdated time.Time                      `json:"last_update"`
	CurrentBest *optimization.Solution         `json:"current_best,omitempty"`
	History     []optimization.GenerationStats `json:"history,omitempty"`
	Result      *evolutionary.Result           `json:"result,omitempty"`
	Error       string                         `json:"error,omitempty"`
}

// startLayout validates req, creates an optimizer and runs it in the
// background.
func (s *Server) startLayout(req StartRequest) (*LayoutState, error) {
	evo := s.cfg.Evolution

	settings := evo.Settings()
	settings.Initializer = firstNonEmpty(req.Initializer, settings.Initializer)
	settings.Selector = firstNonEmpty(req.Selector, settings.Selector)
	settings.Recombiner = firstNonEmpty(req.Recombiner, settings.Recombiner)
	settings.Replacer = firstNonEmpty(req.Replacer, settings.Replacer)
	if req.MaxAttempts > 0 {
		settings.MaxAttempts = req.MaxAttempts
	}
	strategies, err := settings.Build()
	if err != nil {
		return nil, &requestError{err: err}
	}

	file := *s.scenario
	if req.Site != nil {
		file.Site = *req.Site
	}
	if req.Wind != nil {
		file.Wind = *req.Wind
	}
	if err := file.Validate(); err != nil {
		return nil, &requestError{err: err}
	}

	objective := firstNonEmpty(req.Objective, evo.Objective)
	evaluator, direction, err := file.Evaluator(objective)
	if err != nil {
		return nil, &requestError{err: err}
	}

	if (req.LoadFrom != "" || req.SaveTo != "") && s.store == nil {
		return nil, invalid("population storage is disabled")
	}
	if req.PopulationSize < 0 || req.Generations < 0 {
		return nil, invalid("population_size and generations must not be negative")
	}

	generations := evo.Generations
	if req.Generations > 0 {
		generations = req.Generations
	}
	popSize := evo.PopulationSize
	if req.PopulationSize > 0 {
		popSize = req.PopulationSize
	}
	seed := evo.Seed
	if req.Seed != 0 {
		seed = req.Seed
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	state := &LayoutState{
		ID:          id,
		Status:      StatusPending,
		Objective:   objective,
		Direction:   direction,
		Generations: generations,
		StartTime:   now,
		LastUpdated: now,
		CancelFunc:  cancel,
		done:        make(chan struct{}),
	}

	cfg := evolutionary.Config{
		Evaluator:      evaluator,
		Scenario:       &file.Site,
		Strategies:     strategies,
		PopulationSize: popSize,
		Generations:    generations,
		Direction:      direction,
		RandomSeed:     seed,
		Repair:         layout.RepairOptions{MaxAttempts: settings.MaxAttempts},
		LoadFrom:       req.LoadFrom,
		SaveTo:         req.SaveTo,
		Observer:       &stateObserver{server: s, state: state},
		Logger:         s.logger.Zap().With(zap.String("layout_id", id)),
	}
	if s.store != nil {
		cfg.Store = s.store
	}
	if s.recorder != nil {
		cfg.Observer = &stateObserver{server: s, state: state, next: s.recorder.ForRun(id)}
	}

	optimizer, err := evolutionary.NewOptimizer(cfg)
	if err != nil {
		cancel()
		return nil, &requestError{err: err}
	}
	state.Optimizer = optimizer

	s.layoutsMu.Lock()
	active := 0
	for _, st := range s.layouts {
		if !st.terminal() {
			active++
		}
	}
	if active >= evo.MaxRuns {
		s.layoutsMu.Unlock()
		cancel()
		return nil, errTooManyRuns
	}
	s.layouts[id] = state
	s.layoutsMu.Unlock()

	if s.recorder != nil {
		s.recorder.RunStarted(id)
	}
	s.logger.Info("Layout run started", map[string]interface{}{
		"layout_id":       id,
		"objective":       objective,
		"population_size": popSize,
		"generations":     generations,
	})

	go s.runLayout(ctx, state, optimizer)
	return state, nil
}

// runLayout executes the optimization and records its outcome.
func (s *Server) runLayout(ctx context.Context, state *LayoutState, optimizer *evolutionary.Optimizer) {
	defer close(state.done)

	s.layoutsMu.Lock()
	if state.Status == StatusPending {
		state.Status = StatusRunning
	}
	s.layoutsMu.Unlock()

	result, err := optimizer.Optimize(ctx)

	s.layoutsMu.Lock()
	defer s.layoutsMu.Unlock()

	state.Result = result
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		state.Status = StatusCancelled
	case err != nil:
		state.Status = StatusFailed
		state.Err = err.Error()
		fields := apperrors.FieldsOf(err)
		fields["layout_id"] = state.ID
		s.logger.Error("Layout run failed", fields)
	default:
		state.Status = StatusCompleted
		s.logger.Info("Layout run completed", map[string]interface{}{
			"layout_id": state.ID,
			"best":      result.FinalFitness,
			"turbines":  result.Best.Turbines(),
		})
	}

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	if s.recorder != nil {
		status := metrics.StatusCompleted
		switch state.Status {
		case StatusCancelled:
			status = metrics.StatusCancelled
		case StatusFailed:
			status = metrics.StatusFailed
		}
		s.recorder.RunFinished(state.ID, status)
	}
}

// layoutStatus snapshots a run.
func (s *Server) layoutStatus(id string) (*LayoutStatus, error) {
	s.layoutsMu.RLock()
	defer s.layoutsMu.RUnlock()

	state, ok := s.layouts[id]
	if !ok {
		return nil, errNotFound
	}

	status := &LayoutStatus{
		ID:          state.ID,
		Status:      state.Status,
		Objective:   state.Objective,
		Direction:   state.Direction.String(),
		StartTime:   state.StartTime,
		EndTime:     state.EndTime,
		LastUpdated: state.LastUpdated,
		Result:      state.Result,
		Error:       state.Err,
	}
	if state.Optimizer != nil {
		status.CurrentBest = state.Optimizer.GetBestSolution()
		status.History = state.Optimizer.GetHistory()
	}
	if state.Generations > 0 {
		status.Progress = float64(len(status.History)) / float64(state.Generations)
	} else if state.terminal() {
		status.Progress = 1
	}
	return status, nil
}

// cancelLayout asks a run that has not finished yet to stop. The final
// status is recorded by runLayout once the optimizer has returned.
func (s *Server) cancelLayout(id string) error {
	s.layoutsMu.Lock()
	defer s.layoutsMu.Unlock()

	state, ok := s.layouts[id]
	if !ok {
		return errNotFound
	}
	if state.terminal() {
		return fmt.Errorf("%w: status %s", errTerminal, state.Status)
	}

	if state.Status == StatusCancelling {
		return nil
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}
	state.Status = StatusCancelling
	state.LastUpdated = time.Now()

	s.logger.Info("Layout run cancelling", map[string]interface{}{
		"layout_id": id,
	})
	return nil
}

// listLayouts returns the id and status of every known run.
func (s *Server) listLayouts() []map[string]string {
	s.layoutsMu.RLock()
	defer s.layoutsMu.RUnlock()

	out := make([]map[string]string, 0, len(s.layouts))
	for id, st := range s.layouts {
		out = append(out, map[string]string{"layout_id": id, "status": st.Status})
	}
	return out
}

// stateObserver keeps LastUpdated current and forwards to next.
type stateObserver struct {
	server *Server
	state  *LayoutState
	next   evolutionary.Observer
}

func (o *stateObserver) OnGeneration(stats optimization.GenerationStats) {
	o.server.layoutsMu.Lock()
	o.state.LastUpdated = time.Now()
	o.server.layoutsMu.Unlock()
	if o.next != nil {
		o.next.OnGeneration(stats)
	}
}

func (o *stateObserver) OnWarning(err error) {
	o.server.logger.Warn("Infeasible scenario", map[string]interface{}{
		"layout_id": o.state.ID,
		"error":     err,
	})
	if o.next != nil {
		o.next.OnWarning(err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
