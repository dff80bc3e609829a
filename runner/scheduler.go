package runner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-matrix/metrics"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// DefaultProductionEnvironments are the environments in which only
// production safe items may run. Matching ignores case.
var DefaultProductionEnvironments = []string{"production", "live"}

// RetriesCancelledComment marks failed items whose remaining rounds were
// skipped because the run was cancelled.
const RetriesCancelledComment = "retries cancelled"

// Config holds configuration for creating a new scheduler
type Config struct {
	Executor Executor
	// Parallelism is the number of extra workers; 0 runs items serially.
	Parallelism int
	// MaxRetries is the number of extra rounds failed items get.
	MaxRetries             int
	Environment            string
	ProductionEnvironments []string
	Sink                   Sink
	Progress               ProgressIndicator
	Log                    log.Logger
}

// Scheduler runs a work list in rounds until every item is terminal.
type Scheduler struct {
	executor       Executor
	workers        int
	maxRetries     int
	environment    string
	productionEnvs []string
	sink           Sink
	progress       ProgressIndicator
	log            log.Logger
	tracer         trace.Tracer
}

// RunResult captures the complete outcome of a run
type RunResult struct {
	RunID    string
	Items    []*types.WorkItem
	Rounds   int
	Attempts map[uint64]int
	Duration time.Duration
}

// NewScheduler validates cfg. Negative parallelism or retries are configuration errors.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Executor == nil {
		return nil, &ConfigurationError{Setting: "executor", Reason: "an executor is required"}
	}
	if cfg.MaxRetries < 0 {
		return nil, &ConfigurationError{Setting: "retries", Reason: fmt.Sprintf("%d must not be negative", cfg.MaxRetries)}
	}
	if cfg.Parallelism < 0 {
		return nil, &ConfigurationError{Setting: "parallelism", Reason: fmt.Sprintf("%d must not be negative", cfg.Parallelism)}
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}
	if len(cfg.ProductionEnvironments) == 0 {
		cfg.ProductionEnvironments = DefaultProductionEnvironments
	}
	if cfg.Parallelism > 32 {
		cfg.Log.Warn("Very high parallelism requested", "parallelism", cfg.Parallelism,
			"recommendation", "Consider using lower values to avoid resource exhaustion")
	}

	return &Scheduler{
		executor:       cfg.Executor,
		workers:        cfg.Parallelism + 1,
		maxRetries:     cfg.MaxRetries,
		environment:    cfg.Environment,
		productionEnvs: cfg.ProductionEnvironments,
		sink:           cfg.Sink,
		progress:       cfg.Progress,
		log:            cfg.Log.New("component", "scheduler"),
		tracer:         otel.Tracer("op-matrix scheduler"),
	}, nil
}

// Run executes items and returns them once each is Passed, Failed or Blocked.
// Items that are already terminal are passed through untouched. runID may be
// empty, in which case a new one is generated.
func (s *Scheduler) Run(ctx context.Context, runID string, items []*types.WorkItem) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run not started: %w", err)
	}
	if runID == "" {
		runID = uuid.New().String()
	}
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("run %s", runID))
	defer span.End()

	start := time.Now()
	result := &RunResult{
		RunID:    runID,
		Items:    make([]*types.WorkItem, 0, len(items)),
		Attempts: make(map[uint64]int, len(items)),
	}

	candidates := make([]*types.WorkItem, 0, len(items))
	for _, item := range items {
		switch {
		case item.Status.IsEligible():
			candidates = append(candidates, item)
		case item.Status.IsTerminal():
			result.Items = append(result.Items, item)
		default:
			// left over from an interrupted attempt
			s.log.Warn("Item was not terminal at start, scheduling a retest", "id", item.ID(), "status", item.Status)
			item.ResetForRetry()
			candidates = append(candidates, item)
		}
	}

	s.log.Info("Starting run",
		"run_id", runID,
		"items", len(items),
		"candidates", len(candidates),
		"workers", s.workers,
		"maxRetries", s.maxRetries,
		"environment", s.environment)

	for round := 0; len(candidates) > 0; round++ {
		s.runRound(ctx, runID, round, candidates, result.Attempts)
		result.Rounds = round + 1

		var carry []*types.WorkItem
		for _, item := range candidates {
			switch item.Status {
			case types.TestStatusPassed, types.TestStatusBlocked:
				result.Items = append(result.Items, item)
			case types.TestStatusFailed:
				carry = append(carry, item)
			default:
				s.log.Error("Attempt finished without an outcome", "id", item.ID(), "status", item.Status)
				metrics.RecordError("attempt_without_outcome")
				item.MarkFailed(time.Now(), fmt.Sprintf("attempt ended with status %s", item.Status))
				carry = append(carry, item)
			}
		}
		if len(carry) == 0 {
			break
		}
		if round >= s.maxRetries {
			result.Items = append(result.Items, carry...)
			break
		}
		if ctx.Err() != nil {
			s.log.Warn("Run cancelled, no further retries", "round", round, "failed", len(carry))
			for _, item := range carry {
				item.AppendComment(RetriesCancelledComment)
			}
			result.Items = append(result.Items, carry...)
			break
		}

		s.log.Info("Retrying failed items", "round", round+1, "items", len(carry))
		metrics.RecordCarryover(runID, round, len(carry))
		for _, item := range carry {
			item.ResetForRetry()
		}
		candidates = carry
	}

	result.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("items", len(result.Items)), attribute.Int("rounds", result.Rounds))

	s.log.Info("Run completed",
		"run_id", runID,
		"rounds", result.Rounds,
		"items", len(result.Items),
		"duration", result.Duration)
	return result, nil
}

// runRound executes one attempt of every item on a bounded pool and feeds
// completions to the sink as they arrive.
func (s *Scheduler) runRound(ctx context.Context, runID string, round int, items []*types.WorkItem, attempts map[uint64]int) {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("round %d", round))
	defer span.End()

	s.progress.StartRound(round, len(items))
	defer s.progress.CompleteRound(round)

	completions := make(chan *types.WorkItem, min(len(items), 100))
	p := pool.New().WithMaxGoroutines(s.workers)
	go func() {
		for _, item := range items {
			p.Go(func() {
				s.attempt(ctx, runID, item)
				completions <- item
			})
		}
		p.Wait()
		close(completions)
	}()

	for item := range completions {
		if item.Status != types.TestStatusBlocked {
			attempts[item.ID()]++
		}
		s.progress.UpdateItem(itemName(item), item.Status)
		if s.sink == nil {
			continue
		}
		if err := s.sink.Consume(item.Snapshot(), runID); err != nil {
			s.log.Warn("Result sink failed", "id", item.ID(), "error", err)
			metrics.RecordErrorDetails("sink", err)
		}
	}
}

// attempt moves one item to Passed, Failed or Blocked.
func (s *Scheduler) attempt(ctx context.Context, runID string, item *types.WorkItem) {
	desc := item.Descriptor()

	if s.isProductionLike() && !item.ProductionSafe() {
		item.MarkBlocked(time.Now(), fmt.Sprintf("Blocked: not production safe in environment %q", s.environment))
		metrics.RecordAttempt(runID, desc, types.TestStatusBlocked, "production_gate")
		s.log.Info("Item blocked", "id", item.ID(), "item", desc.String(), "environment", s.environment)
		return
	}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("attempt %s", desc.String()))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("id", int64(item.ID())),
		attribute.String("capability", item.Capability()),
		attribute.String("variant", item.ConfigTitle()))

	s.progress.StartItem(itemName(item))
	item.MarkInProgress(time.Now())

	err := catch(func() error {
		return s.executor.Execute(ctx, item.Snapshot())
	})
	if err != nil {
		comment := Describe(err)
		item.MarkFailed(time.Now(), comment)
		span.RecordError(err)
		span.SetStatus(codes.Error, Classify(err))
		metrics.RecordAttempt(runID, desc, types.TestStatusFailed, metricLabel(err))
		s.log.Info("Item failed", "id", item.ID(), "item", desc.String(), "comment", comment, "duration", item.Duration())
		return
	}

	item.MarkPassed(time.Now())
	metrics.RecordAttempt(runID, desc, types.TestStatusPassed, "")
	s.log.Info("Item passed", "id", item.ID(), "item", desc.String(), "duration", item.Duration())
}

func (s *Scheduler) isProductionLike() bool {
	return slices.ContainsFunc(s.productionEnvs, func(env string) bool {
		return strings.EqualFold(env, s.environment)
	})
}

// metricLabel keeps raw failure messages out of metric labels.
func metricLabel(err error) string {
	switch label := Classify(err); label {
	case LabelAssertion, LabelTimeout, LabelType, LabelKey:
		return label
	default:
		return "Other"
	}
}

func itemName(item *types.WorkItem) string {
	return fmt.Sprintf("%s#%d", item.Descriptor().String(), item.ID())
}

// Views returns read-only copies of the result set.
func (r *RunResult) Views() []types.WorkItemView {
	return types.Snapshots(r.Items)
}

// Counts tallies the result set by status.
func (r *RunResult) Counts() map[types.TestStatus]int {
	counts := make(map[types.TestStatus]int)
	for _, item := range r.Items {
		counts[item.Status]++
	}
	return counts
}

func (r *RunResult) HasFailures() bool {
	return r.Counts()[types.TestStatusFailed] > 0
}
