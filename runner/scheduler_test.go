package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func newItems(n int, productionSafe bool) []*types.WorkItem {
	items := make([]*types.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, types.NewWorkItem(types.WorkItemSpec{
			Descriptor:     types.NewDescriptor("pack", "suite", fmt.Sprintf("case%d", i)),
			ProductionSafe: productionSafe,
		}))
	}
	return items
}

// countingExecutor fails every case listed in failUntil until it has been
// attempted that many times.
type countingExecutor struct {
	mu        sync.Mutex
	calls     map[string]int
	failUntil map[string]int
	err       error
}

func newCountingExecutor(err error, failUntil map[string]int) *countingExecutor {
	return &countingExecutor{calls: make(map[string]int), failUntil: failUntil, err: err}
}

func (c *countingExecutor) Execute(_ context.Context, item types.WorkItemView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := item.Descriptor.Case
	c.calls[name]++
	if c.calls[name] <= c.failUntil[name] {
		return c.err
	}
	return nil
}

func (c *countingExecutor) callsFor(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	if cfg.Log == nil {
		cfg.Log = testLogger()
	}
	s, err := NewScheduler(cfg)
	require.NoError(t, err)
	return s
}

func TestNewSchedulerValidation(t *testing.T) {
	exec := ExecutorFunc(func(context.Context, types.WorkItemView) error { return nil })

	tests := []struct {
		name    string
		cfg     Config
		setting string
	}{
		{name: "negative retries", cfg: Config{Executor: exec, MaxRetries: -1}, setting: "retries"},
		{name: "negative parallelism", cfg: Config{Executor: exec, Parallelism: -1}, setting: "parallelism"},
		{name: "missing executor", cfg: Config{}, setting: "executor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Log = testLogger()
			s, err := NewScheduler(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, s)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.setting, cfgErr.Setting)
			assert.ErrorIs(t, err, types.ErrConfiguration)
		})
	}
}

func TestRunAllTerminalAndSizePreserved(t *testing.T) {
	for _, retries := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("retries=%d", retries), func(t *testing.T) {
			items := newItems(12, true)
			exec := newCountingExecutor(types.ErrTimeout, map[string]int{
				"case1": 1,   // passes on the second attempt
				"case2": 100, // never passes
			})
			s := newTestScheduler(t, Config{Executor: exec, Parallelism: 3, MaxRetries: retries})

			result, err := s.Run(context.Background(), "", items)
			require.NoError(t, err)
			require.Len(t, result.Items, len(items))
			assert.NotEmpty(t, result.RunID)

			ids := make(map[uint64]bool)
			for _, item := range result.Items {
				assert.True(t, item.Status.IsTerminal(), "item %d has status %s", item.ID(), item.Status)
				assert.False(t, ids[item.ID()], "item %d appears twice", item.ID())
				ids[item.ID()] = true
				assert.LessOrEqual(t, result.Attempts[item.ID()], retries+1)
			}

			assert.Equal(t, retries+1, exec.callsFor("case2"))
			if retries == 0 {
				assert.Equal(t, 1, exec.callsFor("case1"))
			} else {
				assert.Equal(t, 2, exec.callsFor("case1"))
			}
			assert.Equal(t, 1, exec.callsFor("case0"))
		})
	}
}

func TestRetryRoundsAndDiagnostics(t *testing.T) {
	items := newItems(3, true)
	exec := newCountingExecutor(types.ErrTimeout, map[string]int{"case0": 1, "case1": 10})
	s := newTestScheduler(t, Config{Executor: exec, MaxRetries: 2})

	result, err := s.Run(context.Background(), "run", items)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rounds)

	byCase := make(map[string]*types.WorkItem)
	for _, item := range result.Items {
		byCase[item.Descriptor().Case] = item
	}

	passedOnRetry := byCase["case0"]
	assert.Equal(t, types.TestStatusPassed, passedOnRetry.Status)
	assert.Empty(t, passedOnRetry.Comments, "comments are cleared before a retry")
	assert.Equal(t, 2, result.Attempts[passedOnRetry.ID()])

	neverPasses := byCase["case1"]
	assert.Equal(t, types.TestStatusFailed, neverPasses.Status)
	assert.Equal(t, LabelTimeout, neverPasses.Comments, "last diagnostics are kept and not accumulated")
	assert.NotNil(t, neverPasses.StartTime)
	assert.NotNil(t, neverPasses.EndTime)
	assert.Equal(t, 3, result.Attempts[neverPasses.ID()])

	// items that reached a terminal state in round 0 come first
	assert.Equal(t, "case2", result.Items[0].Descriptor().Case)
}

func TestProductionGating(t *testing.T) {
	for _, env := range []string{"production", "Production", "live", "LIVE"} {
		t.Run(env, func(t *testing.T) {
			unsafe := newItems(2, false)
			safe := []*types.WorkItem{types.NewWorkItem(types.WorkItemSpec{
				Descriptor:     types.NewDescriptor("pack", "suite", "safe"),
				ProductionSafe: true,
			})}
			items := append(unsafe, safe...)

			exec := newCountingExecutor(errors.New("boom"), nil)
			var sinkCalls []types.WorkItemView
			s := newTestScheduler(t, Config{
				Executor:    exec,
				Parallelism: 1,
				MaxRetries:  3,
				Environment: env,
				Sink: SinkFunc(func(item types.WorkItemView, runID string) error {
					sinkCalls = append(sinkCalls, item)
					return nil
				}),
			})

			result, err := s.Run(context.Background(), "run", items)
			require.NoError(t, err)
			require.Len(t, result.Items, 3)
			assert.Equal(t, 1, result.Rounds)

			for _, item := range unsafe {
				assert.Equal(t, types.TestStatusBlocked, item.Status)
				assert.Contains(t, item.Comments, "not production safe")
				assert.NotContains(t, item.Comments, "\n", "reason is recorded once")
				require.NotNil(t, item.StartTime)
				assert.Equal(t, *item.StartTime, *item.EndTime)
				assert.Zero(t, exec.callsFor(item.Descriptor().Case))
				assert.Zero(t, result.Attempts[item.ID()])
			}
			assert.Equal(t, types.TestStatusPassed, safe[0].Status)
			assert.Equal(t, 1, exec.callsFor("safe"))
			assert.Len(t, sinkCalls, 3)
		})
	}
}

func TestBlockedItemsNeverRetried(t *testing.T) {
	unsafe := newItems(1, false)
	failing := newItems(1, true)
	items := append(unsafe, failing...)

	var rounds atomic.Int32
	exec := ExecutorFunc(func(_ context.Context, item types.WorkItemView) error {
		rounds.Add(1)
		return types.Assert(false, "always")
	})
	s := newTestScheduler(t, Config{Executor: exec, MaxRetries: 2, Environment: "production"})

	// The failing item is production safe, so it is attempted on every round.
	result, err := s.Run(context.Background(), "", items)
	require.NoError(t, err)
	assert.Equal(t, int32(3), rounds.Load())
	assert.Equal(t, types.TestStatusBlocked, unsafe[0].Status)
	assert.Equal(t, types.TestStatusFailed, failing[0].Status)
	assert.Contains(t, failing[0].Comments, LabelAssertion)
	assert.Len(t, result.Items, 2)
}

func TestOnlyEligibleItemsAreStarted(t *testing.T) {
	items := newItems(4, true)
	now := time.Now()
	items[0].MarkInProgress(now)
	items[0].MarkPassed(now)
	items[1].Status = types.TestStatusRetest
	items[2].MarkInProgress(now) // interrupted attempt

	exec := newCountingExecutor(nil, nil)
	s := newTestScheduler(t, Config{Executor: exec})

	result, err := s.Run(context.Background(), "", items)
	require.NoError(t, err)
	require.Len(t, result.Items, 4)
	assert.Zero(t, exec.callsFor("case0"), "already passed items are not started")
	assert.Equal(t, 1, exec.callsFor("case1"))
	assert.Equal(t, 1, exec.callsFor("case2"))
	assert.Equal(t, 1, exec.callsFor("case3"))
	assert.Same(t, items[0], result.Items[0])
}

func TestPoolIsBounded(t *testing.T) {
	for _, parallelism := range []int{0, 2} {
		t.Run(fmt.Sprintf("parallelism=%d", parallelism), func(t *testing.T) {
			var running, peak atomic.Int32
			exec := ExecutorFunc(func(context.Context, types.WorkItemView) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			s := newTestScheduler(t, Config{Executor: exec, Parallelism: parallelism})

			_, err := s.Run(context.Background(), "", newItems(10, true))
			require.NoError(t, err)
			assert.LessOrEqual(t, peak.Load(), int32(parallelism+1))
		})
	}
}

func TestExecutorPanicIsContained(t *testing.T) {
	items := newItems(3, true)
	exec := ExecutorFunc(func(_ context.Context, item types.WorkItemView) error {
		if item.Descriptor.Case == "case1" {
			panic("executor exploded")
		}
		return nil
	})
	s := newTestScheduler(t, Config{Executor: exec, Parallelism: 2})

	result, err := s.Run(context.Background(), "", items)
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.Equal(t, types.TestStatusFailed, items[1].Status)
	assert.Contains(t, items[1].Comments, "panic: executor exploded")
	assert.Equal(t, types.TestStatusPassed, items[0].Status)
	assert.Equal(t, types.TestStatusPassed, items[2].Status)
}

func TestSinkReceivesEveryAttempt(t *testing.T) {
	items := newItems(5, true)
	exec := newCountingExecutor(types.ErrKey, map[string]int{"case4": 1})

	var got []types.WorkItemView
	s := newTestScheduler(t, Config{
		Executor:    exec,
		Parallelism: 4,
		MaxRetries:  1,
		Sink: SinkFunc(func(item types.WorkItemView, runID string) error {
			assert.Equal(t, "run-sink", runID)
			got = append(got, item)
			return errors.New("sink errors are not fatal")
		}),
	})

	result, err := s.Run(context.Background(), "run-sink", items)
	require.NoError(t, err)
	assert.Len(t, result.Items, 5)

	// 5 first attempts plus one retry
	require.Len(t, got, 6)
	var failed int
	for _, v := range got {
		assert.True(t, v.Status.IsTerminal())
		if v.Status == types.TestStatusFailed {
			failed++
			assert.Equal(t, LabelKey, v.Comments)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestScheduler(t, Config{Executor: newCountingExecutor(nil, nil)})
	_, err := s.Run(ctx, "", newItems(1, true))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCancelledRunSkipsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := ExecutorFunc(func(context.Context, types.WorkItemView) error {
		cancel()
		return errors.New("boom")
	})
	s := newTestScheduler(t, Config{Executor: exec, MaxRetries: 3})

	items := newItems(2, true)
	result, err := s.Run(ctx, "run", items)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rounds)
	require.Len(t, result.Items, 2)
	for _, item := range items {
		assert.Equal(t, types.TestStatusFailed, item.Status)
		assert.Contains(t, item.Comments, "boom")
		assert.Contains(t, item.Comments, RetriesCancelledComment)
	}
}

func TestExhaustedRetriesAreNotMarkedCancelled(t *testing.T) {
	items := newItems(1, true)
	exec := newCountingExecutor(errors.New("boom"), map[string]int{"case0": 10})
	s := newTestScheduler(t, Config{Executor: exec, MaxRetries: 1})

	_, err := s.Run(context.Background(), "run", items)
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusFailed, items[0].Status)
	assert.NotContains(t, items[0].Comments, RetriesCancelledComment)
}

func TestRunResultCounts(t *testing.T) {
	items := newItems(3, true)
	exec := newCountingExecutor(errors.New("nope"), map[string]int{"case0": 5})
	s := newTestScheduler(t, Config{Executor: exec})

	result, err := s.Run(context.Background(), "", items)
	require.NoError(t, err)

	counts := result.Counts()
	assert.Equal(t, 2, counts[types.TestStatusPassed])
	assert.Equal(t, 1, counts[types.TestStatusFailed])
	assert.True(t, result.HasFailures())
	assert.Len(t, result.Views(), 3)
	assert.Equal(t, "nope", items[0].Comments)
}
