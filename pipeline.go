package opmatrix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ethereum-optimism/infra/op-matrix/flags"
	"github.com/ethereum-optimism/infra/op-matrix/inventory"
	"github.com/ethereum-optimism/infra/op-matrix/logging"
	"github.com/ethereum-optimism/infra/op-matrix/matrix"
	"github.com/ethereum-optimism/infra/op-matrix/metrics"
	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/runner"
	"github.com/ethereum-optimism/infra/op-matrix/store"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Outcome is what one run of a plan produced.
type Outcome struct {
	Run     reporting.RunInfo
	Summary *reporting.Summary
	RunDir  string
}

func (o *Outcome) HasFailures() bool {
	return o.Summary.FailedCount() > 0
}

func (o *Outcome) String() string {
	return fmt.Sprintf("%d of %d items failed (passed %d, blocked %d, untested %d)",
		o.Summary.FailedCount(), o.Summary.Total,
		o.Summary.PassedCount(), o.Summary.BlockedCount(), o.Summary.UntestedCount())
}

// PlanRunner executes one complete run of the configured plan.
type PlanRunner interface {
	RunPlan(ctx context.Context) (*Outcome, error)
}

// pipeline expands the plan, schedules the work list and reports the result set.
type pipeline struct {
	cfg      *Config
	registry *inventory.Registry
	executor runner.Executor
	history  store.HistoryStore
	log      log.Logger
}

var _ PlanRunner = (*pipeline)(nil)

func (p *pipeline) RunPlan(ctx context.Context) (*Outcome, error) {
	plan := p.cfg.Plan
	runID := uuid.New().String()
	start := time.Now()
	logger := p.log.New("run", plan.Name, "run_id", runID)

	ctx, span := otel.Tracer("op-matrix").Start(ctx, fmt.Sprintf("plan %s", plan.Name))
	defer span.End()

	if p.cfg.ReportsKeep > 0 {
		removed, err := logging.PruneRunDirs(p.cfg.ReportsDir, p.cfg.ReportsKeep, start)
		if err != nil {
			logger.Warn("Failed to prune old run directories", "error", err)
		} else if len(removed) > 0 {
			logger.Info("Pruned old run directories", "count", len(removed))
		}
	}

	fileLogger, err := logging.NewFileLogger(p.cfg.ReportsDir, plan.Name, runID)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
	}
	defer func() {
		if err := fileLogger.Complete(runID); err != nil {
			logger.Warn("Failed to close run log", "error", err)
		}
	}()

	builder := matrix.Builder{
		Platform:     plan.Platform,
		Capabilities: plan.Capabilities,
		Environment:  plan.Environment,
		ResultDir:    fileLogger.RunDir(),
		Variants:     plan.Variants,
		Log:          logger,
	}
	items, stats, err := builder.Expand(p.registry, plan.Tests)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to build work list: %w", err))
	}
	logger.Info("Built work list", "items", stats.Items, "excluded", stats.Excluded)

	if p.cfg.Resume {
		p.prime(ctx, logger, items)
	}

	progress := runner.NewNoOpProgressIndicator()
	if p.cfg.ShowProgress {
		progress = runner.NewConsoleProgressIndicator(logger, p.cfg.ProgressInterval)
	}
	defer progress.Stop()
	scheduler, err := runner.NewScheduler(runner.Config{
		Executor:               p.executor,
		Parallelism:            plan.Parallelism,
		MaxRetries:             plan.Retries,
		Environment:            plan.Environment,
		ProductionEnvironments: p.cfg.ProductionEnvironments,
		Sink: runner.MultiSink{
			reporting.NewConsoleSink(p.cfg.Out, p.cfg.Out == os.Stdout),
			fileLogger,
		},
		Progress: progress,
		Log:      logger,
	})
	if err != nil {
		return nil, NewRuntimeError(err)
	}

	result, err := scheduler.Run(ctx, runID, items)
	if err != nil {
		return nil, NewRuntimeError(err)
	}

	outcome := &Outcome{
		Run: reporting.RunInfo{
			RunID:       runID,
			Name:        plan.Name,
			Platform:    plan.Platform,
			Environment: plan.Environment,
			StartTime:   start,
			Duration:    result.Duration,
			Rounds:      result.Rounds,
		},
		Summary: reporting.Aggregate(result.Views(), logger),
		RunDir:  fileLogger.RunDir(),
	}
	span.SetAttributes(
		attribute.Int("items", outcome.Summary.Total),
		attribute.Int("failed", outcome.Summary.FailedCount()))

	p.report(logger, outcome, fileLogger)
	metrics.RecordRun(plan.Name, runID, outcome.Summary.Result(), outcome.Summary.Counts(), result.Duration)

	if p.history != nil {
		rec := store.NewRecord(runID, outcome.Summary.All(), time.Now())
		if err := p.history.Save(ctx, plan.Name, rec); err != nil {
			logger.Warn("Failed to save run history", "error", err)
			metrics.RecordErrorDetails("history_save", err)
		}
	}
	return outcome, nil
}

// prime marks items already settled by the previous run of the plan.
func (p *pipeline) prime(ctx context.Context, logger log.Logger, items []*types.WorkItem) {
	if p.history == nil {
		logger.Warn("Resume requested without a history store, running everything")
		return
	}
	rec, err := p.history.Load(ctx, p.cfg.Plan.Name)
	if errors.Is(err, store.ErrNotFound) {
		logger.Info("No previous run to resume from")
		return
	}
	if err != nil {
		logger.Warn("Failed to load run history, running everything", "error", err)
		metrics.RecordErrorDetails("history_load", err)
		return
	}
	stats := store.Prime(items, rec)
	logger.Info("Resuming from previous run",
		"previous_run_id", rec.RunID, "carried_over", stats.CarriedOver, "retest", stats.Retest)
}

func (p *pipeline) report(logger log.Logger, outcome *Outcome, fileLogger *logging.FileLogger) {
	reporting.NewTableFormatter(p.cfg.Out).Render(outcome.Run, outcome.Summary)

	for _, format := range p.cfg.ReportFormats {
		var reporter reporting.Reporter
		switch format {
		case flags.ReportHTML:
			reporter = &reporting.HTMLReporter{Dir: outcome.RunDir}
		case flags.ReportJSON:
			reporter = &reporting.JSONReporter{Dir: outcome.RunDir}
		default:
			logger.Warn("Unknown report format", "format", format)
			continue
		}
		if err := reporter.Report(outcome.Run, outcome.Summary); err != nil {
			logger.Error("Failed to write report", "format", format, "error", err)
			metrics.RecordErrorDetails("report_"+format, err)
		}
	}
	if err := fileLogger.WriteSummary(outcome.Run, outcome.Summary); err != nil {
		logger.Error("Failed to write run summary", "error", err)
	}
}
