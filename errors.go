package opmatrix

import (
	"errors"
	"fmt"
)

// RuntimeError stops a run before it produces a result set, exit code 2.
// Configuration errors and unusable plans end up here.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports a completed run with failed items, exit code 1.
type TestFailureError struct {
	RunID  string
	Failed int
	Total  int
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: run %s: %d of %d items failed", e.RunID, e.Failed, e.Total)
}

func NewTestFailureError(outcome *Outcome) *TestFailureError {
	return &TestFailureError{
		RunID:  outcome.Run.RunID,
		Failed: outcome.Summary.FailedCount(),
		Total:  outcome.Summary.Total,
	}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
