package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Classification labels recorded in the comments of failed items.
const (
	LabelAssertion = "AssertionError"
	LabelTimeout   = "TimeoutError"
	LabelType      = "TypeError"
	LabelKey       = "KeyError"
)

// PanicError is a recovered panic from a case or its suite.
type PanicError struct {
	Value   any
	Callers []uintptr
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes panics raised with an error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Origin is the innermost frame outside the Go runtime and the panic
// plumbing, usually the line that panicked.
func (e *PanicError) Origin() types.SourceLocation {
	frames := runtime.CallersFrames(e.Callers)
	for {
		frame, more := frames.Next()
		if frame.File != "" && !isPlumbingFrame(frame.Function) {
			return types.SourceLocation{File: frame.File, Line: frame.Line}
		}
		if !more {
			return types.SourceLocation{}
		}
	}
}

func isPlumbingFrame(function string) bool {
	return strings.HasPrefix(function, "runtime.") ||
		strings.Contains(function, "github.com/sourcegraph/conc")
}

type timeout interface {
	Timeout() bool
}

// Classify maps a failure to its classification label. Failures that match no
// known class are labelled with their own message.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var assertErr *types.AssertionError
	if errors.As(err, &assertErr) {
		return LabelAssertion
	}
	if isTimeout(err) {
		return LabelTimeout
	}

	var typeAssertErr *runtime.TypeAssertionError
	if errors.Is(err, types.ErrType) || errors.As(err, &typeAssertErr) {
		return LabelType
	}
	if errors.Is(err, types.ErrKey) {
		return LabelKey
	}
	return err.Error()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, types.ErrTimeout) {
		return true
	}
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}

// Describe renders the comment recorded for a failure: the label followed by
// the source location and statement when one is known.
func Describe(err error) string {
	label := Classify(err)
	if loc := locate(err); loc != "" {
		return label + " at " + loc
	}
	return label
}

func locate(err error) string {
	var locatable types.Locatable
	if errors.As(err, &locatable) {
		if loc := locatable.Location().String(); loc != "" {
			return loc
		}
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr.Origin().String()
	}
	return ""
}
