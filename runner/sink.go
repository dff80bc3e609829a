package runner

import (
	"errors"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Sink receives every finished attempt as soon as it completes. Calls come
// from a single goroutine, in completion order.
type Sink interface {
	Consume(item types.WorkItemView, runID string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(item types.WorkItemView, runID string) error

func (f SinkFunc) Consume(item types.WorkItemView, runID string) error {
	return f(item, runID)
}

// MultiSink fans a completion out to several sinks. Every sink is called
// even when an earlier one fails.
type MultiSink []Sink

func (m MultiSink) Consume(item types.WorkItemView, runID string) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Consume(item, runID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
