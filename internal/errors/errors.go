// Package errors provides stack-carrying errors for the layout service's
// IO boundaries (scenario files, population storage, HTTP).
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

const maxDepth = 32

// Error annotates an underlying error with where it happened and the call
// stack of the first annotation in the chain.
type Error struct {
	Err       error
	Message   string
	Operation string
	Component string

	pcs []uintptr
}

// Error renders as "component.operation: message: cause", skipping empty
// parts.
func (e *Error) Error() string {
	var where string
	switch {
	case e.Component != "" && e.Operation != "":
		where = e.Component + "." + e.Operation
	case e.Component != "":
		where = e.Component
	default:
		where = e.Operation
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{where, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithOperation records the operation that failed.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithComponent records the package or subsystem that failed.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// StackTrace formats the captured stack, one "function\n\tfile:line" entry
// per frame.
func (e *Error) StackTrace() []string {
	if len(e.pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(e.pcs)
	stack := make([]string, 0, len(e.pcs))
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return stack
}

// Fields returns the annotations as structured log fields.
func (e *Error) Fields() map[string]interface{} {
	fields := map[string]interface{}{"error": e.Error()}
	if e.Component != "" {
		fields["component"] = e.Component
	}
	if e.Operation != "" {
		fields["operation"] = e.Operation
	}
	if stack := e.StackTrace(); len(stack) > 0 {
		fields["origin"] = stack[0]
	}
	return fields
}

// Errorf creates an error with a formatted message.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), pcs: callers()}
}

// Wrap annotates err with msg. The stack of an inner *Error is kept.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	pcs := innerStack(err)
	if pcs == nil {
		pcs = callers()
	}
	return &Error{Err: err, Message: msg, pcs: pcs}
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	pcs := innerStack(err)
	if pcs == nil {
		pcs = callers()
	}
	return &Error{Err: err, Message: fmt.Sprintf(format, args...), pcs: pcs}
}

// FieldsOf returns log fields for err, using the annotations of the
// outermost *Error in its chain when there is one.
func FieldsOf(err error) map[string]interface{} {
	var e *Error
	if As(err, &e) {
		fields := e.Fields()
		fields["error"] = err.Error()
		return fields
	}
	return map[string]interface{}{"error": err.Error()}
}

func innerStack(err error) []uintptr {
	var inner *Error
	if stderrors.As(err, &inner) && len(inner.pcs) > 0 {
		return inner.pcs
	}
	return nil
}

func callers() []uintptr {
	var pcs [maxDepth]uintptr
	// Skip runtime.Callers, callers and the constructor.
	n := runtime.Callers(3, pcs[:])
	return append([]uintptr(nil), pcs[:n]...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	if err == nil || target == nil {
		return false
	}
	return stderrors.As(err, target)
}
