package opmatrix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/op-matrix/exitcodes"
	"github.com/ethereum-optimism/infra/op-matrix/inventory"
	"github.com/ethereum-optimism/infra/op-matrix/runner"
	"github.com/ethereum-optimism/infra/op-matrix/store"
	"github.com/ethereum-optimism/infra/op-matrix/suites"
)

// orchestrator implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &orchestrator{}

// orchestrator runs a plan once, or repeatedly at RunInterval.
type orchestrator struct {
	ctx     context.Context
	config  *Config
	version string
	runner  PlanRunner
	outcome *Outcome
	closers []func() error

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

// Option customises New. Mostly useful for wiring extra suites or history in tests.
type Option func(*options)

type options struct {
	registry *inventory.Registry
	history  store.HistoryStore
}

// WithRegistry runs plans against reg instead of a registry holding only the built-in suites.
func WithRegistry(reg *inventory.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithHistory uses h instead of connecting to HistoryRedisURL.
func WithHistory(h store.HistoryStore) Option {
	return func(o *options) { o.history = h }
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error), opts ...Option) (*orchestrator, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Plan == nil {
		return nil, errors.New("config has no plan")
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	config.Log.Debug("Creating op-matrix with config",
		"plan", config.Plan.Name,
		"planFile", config.PlanFile,
		"environment", config.Plan.Environment,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"resume", config.Resume)

	reg := o.registry
	if reg == nil {
		reg = inventory.NewRegistry(inventory.Config{Log: config.Log})
		suiteOpts := suites.DefaultOptions()
		suiteOpts.AgifyBaseURL = config.Plan.SuiteSetting("api", "base_url", suites.DefaultAgifyBaseURL)
		if err := suites.RegisterBuiltin(reg, suiteOpts); err != nil {
			return nil, fmt.Errorf("failed to register built-in suites: %w", err)
		}
	}

	var closers []func() error
	history := o.history
	if history == nil && config.HistoryRedisURL != "" {
		client, err := store.NewRedisClient(ctx, config.HistoryRedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create history store: %w", err)
		}
		redisStore := store.NewRedisStore(client, config.HistoryTTL, config.Log)
		closers = append(closers, redisStore.Close)
		history = redisStore
	}

	config.Log.Info("op-matrix.New: created registry and executor", "packs", len(reg.Packs()))

	return &orchestrator{
		ctx:     ctx,
		config:  config,
		version: version,
		runner: &pipeline{
			cfg:      config,
			registry: reg,
			executor: runner.NewInventoryExecutor(reg, config.Log),
			history:  history,
			log:      config.Log,
		},
		closers:          closers,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the plan immediately, then at RunInterval unless in run-once mode.
// Start implements the cliapp.Lifecycle interface.
func (o *orchestrator) Start(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			o.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	o.ctx = ctx
	o.done = make(chan struct{})
	o.running.Store(true)

	if o.config.RunOnce {
		o.config.Log.Info("Starting op-matrix in run-once mode")
	} else {
		o.config.Log.Info("Starting op-matrix in continuous mode", "interval", o.config.RunInterval)
	}

	if err := o.runPlan(ctx); err != nil {
		o.config.Log.Error("Runtime error running plan", "error", err)
		return err
	}

	if o.config.RunOnce {
		o.config.Log.Info("Run completed, exiting (run-once mode)")
		if o.outcome != nil && o.outcome.HasFailures() {
			o.config.Log.Warn("Run-once completed with failures, returning exit code 1")
			return NewTestFailureError(o.outcome)
		}
		go func() {
			o.shutdownCallback(nil)
		}()
		return nil
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.config.Log.Debug("Starting periodic plan runner goroutine", "interval", o.config.RunInterval)

		for {
			select {
			case <-time.After(o.config.RunInterval):
				if !o.running.Load() {
					o.config.Log.Debug("Service stopped, exiting periodic plan runner")
					return
				}
				o.config.Log.Info("Running plan")
				if err := o.runPlan(ctx); err != nil {
					o.config.Log.Error("Error running periodic plan", "error", err)
				}

			case <-o.done:
				o.config.Log.Debug("Done signal received, stopping periodic plan runner")
				return

			case <-ctx.Done():
				o.config.Log.Debug("Context canceled, stopping periodic plan runner")
				o.running.Store(false)
				return
			}
		}
	}()
	o.config.Log.Debug("op-matrix started successfully")
	return nil
}

func (o *orchestrator) runPlan(ctx context.Context) error {
	outcome, err := o.runner.RunPlan(ctx)
	if err != nil {
		if !IsRuntimeError(err) {
			err = NewRuntimeError(err)
		}
		return err
	}
	o.outcome = outcome
	o.config.Log.Info("Run completed",
		"run_id", outcome.Run.RunID,
		"result", outcome.Summary.Result(),
		"summary", outcome.String(),
		"dir", outcome.RunDir)
	return nil
}

// Stop implements the cliapp.Lifecycle interface.
func (o *orchestrator) Stop(ctx context.Context) error {
	o.config.Log.Info("Stopping op-matrix")

	if !o.running.Load() {
		o.config.Log.Debug("Service already stopped, nothing to do")
		return o.close()
	}
	o.running.Store(false)
	close(o.done)

	o.config.Log.Info("op-matrix stopped successfully")
	return o.close()
}

func (o *orchestrator) close() error {
	var errs []error
	for _, c := range o.closers {
		errs = append(errs, c())
	}
	o.closers = nil
	return errors.Join(errs...)
}

// Stopped implements the cliapp.Lifecycle interface.
func (o *orchestrator) Stopped() bool {
	return !o.running.Load()
}

// WaitForShutdown blocks until the periodic runner has exited or ctx is done.
func (o *orchestrator) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		o.config.Log.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
