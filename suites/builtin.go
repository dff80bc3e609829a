// Package suites holds the packs that ship with op-matrix.
package suites

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-matrix/inventory"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Options configures the built-in packs.
type Options struct {
	// AgifyBaseURL is the endpoint the api pack talks to.
	AgifyBaseURL string
	// HTTPTimeout bounds each api request. Zero uses DefaultHTTPTimeout.
	HTTPTimeout time.Duration
	// TimeoutAfter is how long the error_timeout cases wait before giving up.
	TimeoutAfter time.Duration
	// AgifyRate caps api requests per second across all attempts. Zero disables the cap.
	AgifyRate float64
}

const (
	DefaultAgifyBaseURL = "https://api.agify.io"
	DefaultHTTPTimeout  = 10 * time.Second
)

func DefaultOptions() Options {
	return Options{
		AgifyBaseURL: DefaultAgifyBaseURL,
		HTTPTimeout:  DefaultHTTPTimeout,
		TimeoutAfter: 50 * time.Millisecond,
		AgifyRate:    1,
	}
}

// RegisterBuiltin registers functional/statuses, errors/traverse and api/agify.
func RegisterBuiltin(reg *inventory.Registry, opts Options) error {
	if opts.AgifyBaseURL == "" {
		opts.AgifyBaseURL = DefaultAgifyBaseURL
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = DefaultHTTPTimeout
	}
	if opts.TimeoutAfter <= 0 {
		opts.TimeoutAfter = DefaultOptions().TimeoutAfter
	}

	statuses := statusCases(opts)
	if err := reg.Register("functional", "statuses", inventory.Static(statuses), statuses.Names()...); err != nil {
		return err
	}
	traverse := traverseCases(opts)
	if err := reg.Register("errors", "traverse", inventory.Static(traverse), traverse.Names()...); err != nil {
		return err
	}
	return reg.Register("api", "agify", newAgifyFactory(opts), agifyCases...)
}

func statusCases(opts Options) inventory.Funcs {
	return inventory.Funcs{
		"this_must_pass":       thisMustPass,
		"error_assertion":      failAssertion,
		"error_timeout":        waitPast(opts.TimeoutAfter),
		"error_type":           failTypeAssertion,
		"error_key":            failMissingKey,
		"error_divide_by_zero": failDivideByZero,
	}
}

func traverseCases(opts Options) inventory.Funcs {
	return inventory.Funcs{
		"error_assertion": failAssertion,
		"error_timeout":   waitPast(opts.TimeoutAfter),
		"error_type":      failTypeAssertion,
		"error_key":       failMissingKey,
		"error_nested":    failNested,
	}
}

func thisMustPass(context.Context) error {
	values := []int{1, 2, 3}
	return types.Assertf(len(values) == 3, "expected 3 values, got %d", len(values))
}

func failAssertion(context.Context) error {
	values := []int{1, 2}
	return types.Assert(len(values) == 3, "expected exactly three values")
}

func waitPast(limit time.Duration) inventory.Case {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for element: %w", ctx.Err())
		case <-time.After(limit * 10):
			return nil
		}
	}
}

func failTypeAssertion(context.Context) error {
	var v any = "42"
	n := v.(int)
	return fmt.Errorf("unreachable %d", n)
}

func failMissingKey(context.Context) error {
	fields := map[string]string{"name": "alice"}
	age, ok := fields["age"]
	if !ok {
		return types.NewKeyError("age")
	}
	return fmt.Errorf("unreachable %s", age)
}

func failDivideByZero(context.Context) error {
	zero := 0
	return fmt.Errorf("unreachable %d", 1/zero)
}

func failNested(context.Context) error {
	return outer(3)
}

func outer(depth int) error {
	if depth == 0 {
		return inner()
	}
	return outer(depth - 1)
}

func inner() error {
	return types.Assert(false, "nested check failed")
}
