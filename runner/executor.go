package runner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/ethereum-optimism/infra/op-matrix/inventory"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Executor runs one attempt of a work item and reports how it went. A nil
// error means the case passed.
type Executor interface {
	Execute(ctx context.Context, item types.WorkItemView) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, item types.WorkItemView) error

func (f ExecutorFunc) Execute(ctx context.Context, item types.WorkItemView) error {
	return f(ctx, item)
}

// SuiteLookup resolves the constructor of a suite.
type SuiteLookup interface {
	Lookup(pack, suite string) (inventory.SuiteFactory, error)
}

// InventoryExecutor builds a fresh suite instance per attempt from the
// inventory, runs the requested case and always releases the instance.
type InventoryExecutor struct {
	suites SuiteLookup
	log    log.Logger
}

var _ Executor = (*InventoryExecutor)(nil)

func NewInventoryExecutor(suites SuiteLookup, logger log.Logger) *InventoryExecutor {
	if logger == nil {
		logger = log.New()
	}
	return &InventoryExecutor{
		suites: suites,
		log:    logger.New("component", "executor"),
	}
}

func (e *InventoryExecutor) Execute(ctx context.Context, item types.WorkItemView) (err error) {
	desc := item.Descriptor
	logger := e.log.New("id", item.ID, "item", desc.String(), "capability", item.Capability, "variant", item.ConfigTitle)

	if item.ScreenshotDir != "" {
		if mkErr := os.MkdirAll(item.ScreenshotDir, 0755); mkErr != nil {
			logger.Warn("Failed to create screenshot directory", "dir", item.ScreenshotDir, "error", mkErr)
		}
	}

	factory, err := e.suites.Lookup(desc.Pack, desc.Suite)
	if err != nil {
		return fmt.Errorf("failed to find suite: %w", err)
	}

	var suite inventory.Suite
	if err := catch(func() error {
		var buildErr error
		suite, buildErr = factory(inventory.SuiteEnv{
			Pack:          desc.Pack,
			Suite:         desc.Suite,
			Platform:      item.Platform,
			Capability:    item.Capability,
			ConfigTitle:   item.ConfigTitle,
			ConfigValue:   item.ConfigValue,
			ScreenshotDir: item.ScreenshotDir,
			Log:           logger,
		})
		return buildErr
	}); err != nil {
		return fmt.Errorf("failed to set up suite: %w", err)
	}
	if suite == nil {
		return errors.New("failed to set up suite: constructor returned no suite")
	}
	defer e.cleanup(suite, logger)

	run, ok := suite.Cases()[desc.Case]
	if !ok || run == nil {
		return fmt.Errorf("%w: %s", inventory.ErrUnknownCase, desc.String())
	}

	logger.Debug("Running case")
	return catch(func() error {
		return run(ctx)
	})
}

// cleanup releases the suite. Its failures are logged and never change the outcome.
func (e *InventoryExecutor) cleanup(suite inventory.Suite, logger log.Logger) {
	cleaner, ok := suite.(inventory.Cleaner)
	if !ok {
		return
	}
	if err := catch(cleaner.Cleanup); err != nil {
		logger.Warn("Cleanup failed", "error", err)
	}
}

// catch runs f and converts a panic into a *PanicError.
func catch(f func() error) error {
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() {
		err = f()
	})
	if r := pc.Recovered(); r != nil {
		return &PanicError{Value: r.Value, Callers: r.Callers, Stack: r.Stack}
	}
	return err
}
