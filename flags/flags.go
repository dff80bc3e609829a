package flags

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_MATRIX"

// Report formats written to the run directory in addition to the console table.
const (
	ReportHTML = "html"
	ReportJSON = "json"
)

func ValidReportFormats() []string {
	return []string{ReportHTML, ReportJSON}
}

var (
	Plan = &cli.StringFlag{
		Name:     "plan",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "PLAN"),
		Usage:    "Path to the run plan file (eg. 'nightly.yaml')",
	}
	Variants = &cli.StringFlag{
		Name:    "variants",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "VARIANTS"),
		Usage:   "Path to an additional variants file, merged over the plan's variants",
	}
	Environment = &cli.StringFlag{
		Name:    "environment",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENVIRONMENT"),
		Usage:   "Target environment name. Overrides the plan.",
	}
	Platform = &cli.StringFlag{
		Name:    "platform",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLATFORM"),
		Usage:   "Platform label stamped on every work item. Overrides the plan.",
	}
	Parallelism = &cli.IntFlag{
		Name:    "parallelism",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PARALLELISM"),
		Usage:   "Extra workers beyond the first (0 runs serially). Overrides the plan when set.",
	}
	Retries = &cli.IntFlag{
		Name:    "retries",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RETRIES"),
		Usage:   "Extra rounds for failed items. Overrides the plan when set.",
	}
	ReportsDir = &cli.StringFlag{
		Name:    "reports-dir",
		Value:   "reports",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORTS_DIR"),
		Usage:   "Directory under which each run gets its own result directory",
	}
	ReportsKeep = &cli.DurationFlag{
		Name:    "reports-keep",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORTS_KEEP"),
		Usage:   "Remove run directories older than this before a run (e.g. '168h'). 0 keeps everything.",
	}
	ReportFormats = &cli.StringSliceFlag{
		Name:    "report-formats",
		Value:   cli.NewStringSlice(ReportHTML, ReportJSON),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_FORMATS"),
		Usage:   fmt.Sprintf("Report files to write. Any of: %s", strings.Join(ValidReportFormats(), ", ")),
		Action: func(ctx *cli.Context, v []string) error {
			return validateReportFormats(v)
		},
	}
	ProductionEnvironments = &cli.StringSliceFlag{
		Name:    "production-environments",
		Value:   cli.NewStringSlice("production", "live"),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PRODUCTION_ENVIRONMENTS"),
		Usage:   "Environments in which only production safe variants run (case-insensitive)",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PROGRESS"),
		Usage:   "Log periodic progress while a round is running",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates when show-progress is enabled",
	}
	HistoryRedisURL = &cli.StringFlag{
		Name:    "history-redis-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HISTORY_REDIS_URL"),
		Usage:   "Redis URL used to keep run history (eg. 'redis://localhost:6379/0'). Empty disables history.",
	}
	HistoryTTL = &cli.DurationFlag{
		Name:    "history-ttl",
		Value:   7 * 24 * time.Hour,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HISTORY_TTL"),
		Usage:   "How long run history is kept in redis. 0 keeps it forever.",
	}
	Resume = &cli.BoolFlag{
		Name:    "resume",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RESUME"),
		Usage:   "Skip items that passed in the previous run of the same plan",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
)

var requiredFlags = []cli.Flag{
	Plan,
}

var optionalFlags = []cli.Flag{
	Variants,
	Environment,
	Platform,
	Parallelism,
	Retries,
	ReportsDir,
	ReportsKeep,
	ReportFormats,
	ProductionEnvironments,
	ShowProgress,
	ProgressInterval,
	HistoryRedisURL,
	HistoryTTL,
	Resume,
	RunInterval,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}

func validateReportFormats(formats []string) error {
	for _, f := range formats {
		switch f {
		case ReportHTML, ReportJSON:
		default:
			return fmt.Errorf("report-formats must be any of %s, got %q",
				strings.Join(ValidReportFormats(), ", "), f)
		}
	}
	return nil
}
