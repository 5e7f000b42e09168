package schemas

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a per-action failure.
type ErrorKind string

const (
	KindTimeout            ErrorKind = "Timeout"
	KindControlNotFound    ErrorKind = "ControlNotFound"
	KindDependencyFailure  ErrorKind = "DependencyFailure"
	KindPersistenceFailure ErrorKind = "PersistenceFailure"
)

var (
	// ErrControlNotFound is returned when no selector in a chain matches.
	ErrControlNotFound = errors.New("control not found")
	// ErrWaitTimeout is returned when a bounded wait for an element expires.
	ErrWaitTimeout = errors.New("timed out waiting for element")
	// ErrPersistence marks failures to write durable state.
	ErrPersistence = errors.New("persistence failure")
)

// ActionError is a classified, non-fatal failure of a single step.
type ActionError struct {
	Kind ErrorKind `json:"kind"`
	Step string    `json:"step"`
	Err  error     `json:"-"`
}

// NewActionError classifies err and attaches the step it occurred in.
// An existing ActionError keeps its kind, and its step is nested under the
// new one ("like: record like").
func NewActionError(step string, err error) *ActionError {
	var ae *ActionError
	if errors.As(err, &ae) {
		nested := step
		switch {
		case step == "":
			nested = ae.Step
		case ae.Step != "" && ae.Step != step:
			nested = step + ": " + ae.Step
		}
		return &ActionError{Kind: ae.Kind, Step: nested, Err: ae.Err}
	}
	return &ActionError{Kind: ClassifyError(err), Step: step, Err: err}
}

func (e *ActionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// MarshalText renders the error as its message so reports stay readable.
func (e *ActionError) MarshalText() ([]byte, error) {
	return []byte(e.Error()), nil
}

// ClassifyError maps a cause onto the error taxonomy.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWaitTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrControlNotFound):
		return KindControlNotFound
	case errors.Is(err, ErrPersistence):
		return KindPersistenceFailure
	default:
		return KindDependencyFailure
	}
}
