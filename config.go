package opmatrix

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-matrix/config"
	"github.com/ethereum-optimism/infra/op-matrix/flags"
	"github.com/ethereum-optimism/infra/op-matrix/matrix"
)

// Config holds the application configuration
type Config struct {
	Plan                   *config.Plan
	PlanFile               string
	VariantsFile           string
	ReportsDir             string        // Directory under which run directories are created
	ReportsKeep            time.Duration // Age after which old run directories are removed, 0 keeps all
	ReportFormats          []string
	ProductionEnvironments []string
	ShowProgress           bool
	ProgressInterval       time.Duration
	HistoryRedisURL        string
	HistoryTTL             time.Duration
	Resume                 bool          // Skip items that passed in the previous run of the plan
	RunInterval            time.Duration // Interval between runs
	RunOnce                bool          // Exit after one run
	Out                    io.Writer     // Destination of the results table and per-item lines
	Log                    log.Logger
}

// NewConfig creates a new Config from cli context. Flag values override the plan.
func NewConfig(ctx *cli.Context, log log.Logger, planFile string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if planFile == "" {
		return nil, errors.New("plan file is required")
	}

	absPlan, err := filepath.Abs(planFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for plan '%s': %w", planFile, err)
	}
	plan, err := config.LoadPlan(absPlan)
	if err != nil {
		return nil, err
	}

	variantsFile := ctx.String(flags.Variants.Name)
	if variantsFile != "" {
		extra, err := matrix.LoadVariantsFile(variantsFile)
		if err != nil {
			return nil, err
		}
		plan.Variants = plan.Variants.Merge(extra)
	}

	if env := ctx.String(flags.Environment.Name); env != "" {
		plan.Environment = env
	}
	if platform := ctx.String(flags.Platform.Name); platform != "" {
		plan.Platform = platform
	}
	if ctx.IsSet(flags.Parallelism.Name) {
		plan.Parallelism = ctx.Int(flags.Parallelism.Name)
	}
	if ctx.IsSet(flags.Retries.Name) {
		plan.Retries = ctx.Int(flags.Retries.Name)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	reportsDir := ctx.String(flags.ReportsDir.Name)
	if reportsDir == "" {
		reportsDir = "reports"
	}
	reportsDir, err = filepath.Abs(reportsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for reports directory '%s': %w", reportsDir, err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	return &Config{
		Plan:                   plan,
		PlanFile:               absPlan,
		VariantsFile:           variantsFile,
		ReportsDir:             reportsDir,
		ReportsKeep:            ctx.Duration(flags.ReportsKeep.Name),
		ReportFormats:          ctx.StringSlice(flags.ReportFormats.Name),
		ProductionEnvironments: ctx.StringSlice(flags.ProductionEnvironments.Name),
		ShowProgress:           ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval:       ctx.Duration(flags.ProgressInterval.Name),
		HistoryRedisURL:        ctx.String(flags.HistoryRedisURL.Name),
		HistoryTTL:             ctx.Duration(flags.HistoryTTL.Name),
		Resume:                 ctx.Bool(flags.Resume.Name),
		RunInterval:            runInterval,
		RunOnce:                runInterval == 0,
		Out:                    os.Stdout,
		Log:                    log,
	}, nil
}
