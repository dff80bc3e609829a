package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-matrix/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "opmatrix"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "attempts_total",
		Help:      "Count of work item attempts by outcome",
	}, []string{
		"run_id",
		"pack",
		"suite",
		"status",
		"classification",
	})

	excludedVariantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "excluded_variants_total",
		Help:      "Count of variants dropped because the environment is excluded",
	}, []string{
		"pack",
		"suite",
		"environment",
	})

	workItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "work_items_total",
		Help:      "Final status of work items",
	}, []string{
		"run_id",
		"status",
	})

	roundCarryover = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "round_carryover",
		Help:      "Number of failed items carried into the next round",
	}, []string{
		"run_id",
		"round",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of a run",
	}, []string{
		"run_name",
		"run_id",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a run",
	}, []string{
		"run_name",
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordAttempt counts one finished attempt. Only terminal statuses are accepted.
func RecordAttempt(runID string, desc types.Descriptor, status types.TestStatus, classification string) {
	if !status.IsTerminal() {
		log.Error("RecordAttempt - invalid status", "status", status, "item", desc.String())
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "attempts_total",
			"run_id", runID,
			"item", desc.String(),
			"status", status,
			"classification", classification)
	}
	attemptsTotal.WithLabelValues(runID, desc.Pack, desc.Suite, string(status), classification).Inc()
}

func RecordExcluded(desc types.Descriptor, environment string) {
	excludedVariantsTotal.WithLabelValues(desc.Pack, desc.Suite, environment).Inc()
}

func RecordCarryover(runID string, round int, count int) {
	roundCarryover.WithLabelValues(runID, fmt.Sprint(round)).Set(float64(count))
}

// RecordRun publishes the final counts of a run.
func RecordRun(runName string, runID string, result string, counts map[types.TestStatus]int, duration time.Duration) {
	runResults.WithLabelValues(runName, runID, result).Set(1)
	for status, n := range counts {
		workItemsTotal.WithLabelValues(runID, string(status)).Add(float64(n))
	}
	runDuration.WithLabelValues(runName, runID).Set(duration.Seconds())
}
