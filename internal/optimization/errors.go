package optimization

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPopulation is returned when a fitness scan runs on an empty
	// population.
	ErrEmptyPopulation = errors.New("empty population")

	// ErrStaleFitness is returned when fitness is read from an individual
	// whose layout changed after it was last scored.
	ErrStaleFitness = errors.New("stale fitness")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	switch {
	case e.Component != "" && e.Op != "":
		prefix = e.Component + ": " + e.Op
	case e.Component != "":
		prefix = e.Component
	default:
		prefix = e.Op
	}

	msg := e.Message
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new optimization error with the given message.
func NewError(message string) *Error {
	return &Error{
		Message: message,
	}
}

// NewErrorf creates a new optimization error with formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// EmptyPopulationError reports a fitness scan over an empty population.
func EmptyPopulationError(op string) *Error {
	return WrapError(ErrEmptyPopulation, "no individual to select").WithOperation(op)
}

// IsOptimizationError checks if an error is, or wraps, an Error.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// InfeasibleScenarioWarning reports that repair or constrained sampling
// stopped at its attempt cap without reaching a feasible layout. It is
// non-fatal: the affected layouts are kept as they are.
type InfeasibleScenarioWarning struct {
	// Op is the operation that gave up.
	Op string
	// Individuals is the number of individuals left infeasible or short.
	Individuals int
	// Coordinates is the number of coordinates that could not be placed.
	Coordinates int
	// Attempts is the per-coordinate cap that was exhausted.
	Attempts int
}

func (w *InfeasibleScenarioWarning) Error() string {
	return fmt.Sprintf("%s: %d coordinate(s) in %d individual(s) unresolved after %d attempts; site may be too dense",
		w.Op, w.Coordinates, w.Individuals, w.Attempts)
}

// IsInfeasibleScenario reports whether err carries an InfeasibleScenarioWarning.
func IsInfeasibleScenario(err error) bool {
	var w *InfeasibleScenarioWarning
	return errors.As(err, &w)
}
