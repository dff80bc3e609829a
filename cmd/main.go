package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	opmatrix "github.com/ethereum-optimism/infra/op-matrix"
	"github.com/ethereum-optimism/infra/op-matrix/exitcodes"
	"github.com/ethereum-optimism/infra/op-matrix/flags"
	"github.com/ethereum-optimism/infra/op-matrix/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-matrix"
	app.Usage = "Test matrix orchestrator"
	app.Description = "op-matrix expands a run plan into capability x test x variant work items and runs them with bounded parallelism and retry rounds"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), exitCode(err)))
		}
	}

	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	svc := service.New()
	svc.Start(ctx)
	defer func() {
		if err := svc.Shutdown(); err != nil {
			log.Error("Service shutdown failed", "err", err)
		}
	}()

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := opmatrix.NewConfig(ctx, log, ctx.String(flags.Plan.Name))
	if err != nil {
		return nil, opmatrix.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "plan", cfg.PlanFile, "reports", cfg.ReportsDir)

	orchestrator, err := opmatrix.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, opmatrix.NewRuntimeError(fmt.Errorf("failed to create op-matrix: %w", err))
	}
	return orchestrator, nil
}

// exitCode maps errors returned by the lifecycle to process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case opmatrix.IsRuntimeError(err):
		return exitcodes.RuntimeErr
	case opmatrix.IsTestFailureError(err):
		return exitcodes.TestFailure
	default:
		// Unclassified errors count as failures
		return exitcodes.TestFailure
	}
}
