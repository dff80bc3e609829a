package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

var _ net.Error = netTimeout{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "assertion", err: types.Assert(false, "x"), want: LabelAssertion},
		{name: "wrapped assertion", err: fmt.Errorf("step 2: %w", types.Assertf(false, "%d", 1)), want: LabelAssertion},
		{name: "deadline", err: context.DeadlineExceeded, want: LabelTimeout},
		{name: "os deadline", err: fmt.Errorf("read: %w", os.ErrDeadlineExceeded), want: LabelTimeout},
		{name: "sentinel timeout", err: types.ErrTimeout, want: LabelTimeout},
		{name: "net timeout", err: &net.OpError{Op: "dial", Err: netTimeout{}}, want: LabelTimeout},
		{name: "type error", err: types.NewTypeError(1, "one"), want: LabelType},
		{name: "type sentinel", err: types.ErrType, want: LabelType},
		{name: "key error", err: types.NewKeyError("age"), want: LabelKey},
		{name: "key sentinel", err: fmt.Errorf("lookup: %w", types.ErrKey), want: LabelKey},
		{name: "other", err: errors.New("element not clickable"), want: "element not clickable"},
		{name: "cancelled is raw", err: context.Canceled, want: "context canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyPanics(t *testing.T) {
	t.Run("type assertion", func(t *testing.T) {
		err := catch(func() error {
			var v any = "str"
			_ = v.(int)
			return nil
		})
		assert.Equal(t, LabelType, Classify(err))
		assert.Contains(t, Describe(err), "classify_test.go:")
	})

	t.Run("divide by zero", func(t *testing.T) {
		zero := 0
		err := catch(func() error {
			return fmt.Errorf("unreachable %d", 1/zero)
		})
		assert.Equal(t, "panic: runtime error: integer divide by zero", Classify(err))
	})

	t.Run("panicked assertion keeps its own location", func(t *testing.T) {
		err := catch(func() error {
			panic(types.Assert(false, "inside panic"))
		})
		assert.Equal(t, LabelAssertion, Classify(err))
		assert.Contains(t, Describe(err), `panic(types.Assert(false, "inside panic"))`)
	})

	t.Run("plain value", func(t *testing.T) {
		err := catch(func() error { panic(42) })
		var panicErr *PanicError
		require.ErrorAs(t, err, &panicErr)
		assert.Equal(t, 42, panicErr.Value)
		assert.Nil(t, panicErr.Unwrap())
		assert.Equal(t, "panic: 42", Classify(err))
	})
}

func TestDescribe(t *testing.T) {
	err := types.Assert(1 > 2, "ordering")
	desc := Describe(err)
	assert.True(t, strings.HasPrefix(desc, "AssertionError at classify_test.go:"), desc)
	assert.True(t, strings.HasSuffix(desc, `err := types.Assert(1 > 2, "ordering")`), desc)

	assert.Equal(t, "TimeoutError", Describe(context.DeadlineExceeded))
	assert.Equal(t, "boom", Describe(errors.New("boom")))
}
