package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

const (
	RunDirectoryPrefix = "testrun-"
	AllLogsFilename    = "all.log"
	SummaryFilename    = "summary.log"
	FailedDirname      = "failed"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileLogger writes the results of one run into its own directory:
//
//	<base>/testrun-<name>-<runID>/all.log      every finished attempt
//	<base>/testrun-<name>-<runID>/failed/*.log one file per failed attempt
//	<base>/testrun-<name>-<runID>/summary.log  totals, written on Complete
type FileLogger struct {
	baseDir   string
	runDir    string
	failedDir string
	runID     string
	allLogs   *lineLog
	mu        sync.Mutex
}

// NewFileLogger creates the run directory and opens the combined log.
func NewFileLogger(baseDir string, runName string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	dirName := RunDirectoryPrefix + runID
	if runName != "" {
		dirName = RunDirectoryPrefix + SafeFilename(runName) + "-" + runID
	}
	runDir := filepath.Join(baseDir, dirName)
	failedDir := filepath.Join(runDir, FailedDirname)

	for _, dir := range []string{baseDir, runDir, failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	allLogs, err := openLineLog(filepath.Join(runDir, AllLogsFilename))
	if err != nil {
		return nil, err
	}

	return &FileLogger{
		baseDir:   baseDir,
		runDir:    runDir,
		failedDir: failedDir,
		runID:     runID,
		allLogs:   allLogs,
	}, nil
}

// GetRunID returns the run ID this logger writes for
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// RunDir is where screenshots and reports of this run belong.
func (l *FileLogger) RunDir() string {
	return l.runDir
}

// Consume records one finished attempt.
func (l *FileLogger) Consume(item types.WorkItemView, runID string) error {
	if runID != l.runID {
		return fmt.Errorf("result for run %s given to logger of run %s", runID, l.runID)
	}
	if err := l.allLogs.Append(formatLogLine(item)); err != nil {
		return err
	}
	if item.Status != types.TestStatusFailed {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	name := fmt.Sprintf("%d-%s.log", item.ID, SafeFilename(item.Descriptor.String()))
	body := stripansi.Strip(formatFailure(item))
	// retried items overwrite their previous failure, the last attempt wins
	if err := os.WriteFile(filepath.Join(l.failedDir, name), []byte(body), 0644); err != nil {
		return fmt.Errorf("failed to write failure log: %w", err)
	}
	return nil
}

// WriteSummary writes the totals of a finished run.
func (l *FileLogger) WriteSummary(run reporting.RunInfo, s *reporting.Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:         %s (%s)\n", run.Name, run.RunID)
	fmt.Fprintf(&b, "Platform:    %s\n", run.Platform)
	fmt.Fprintf(&b, "Environment: %s\n", run.Environment)
	fmt.Fprintf(&b, "Started:     %s\n", run.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration:    %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Rounds:      %d\n\n", run.Rounds)
	fmt.Fprintf(&b, "Total:    %d\n", s.Total)
	fmt.Fprintf(&b, "Passed:   %d\n", s.PassedCount())
	fmt.Fprintf(&b, "Failed:   %d\n", s.FailedCount())
	fmt.Fprintf(&b, "Blocked:  %d\n", s.BlockedCount())
	fmt.Fprintf(&b, "Untested: %d\n", s.UntestedCount())
	if len(s.Unclassified) > 0 {
		fmt.Fprintf(&b, "Unclassified: %d\n", len(s.Unclassified))
	}
	fmt.Fprintf(&b, "Result:   %s\n", strings.ToUpper(s.Result()))

	if len(s.Failed) > 0 {
		b.WriteString("\nFailed items:\n")
		for _, item := range s.Failed {
			fmt.Fprintf(&b, "  #%d %s [%s | %s]: %s\n",
				item.ID, item.Descriptor.String(), item.Capability, item.ConfigTitle,
				strings.ReplaceAll(item.Comments, "\n", "; "))
		}
	}

	path := filepath.Join(l.runDir, SummaryFilename)
	if err := os.WriteFile(path, []byte(stripansi.Strip(b.String())), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Complete flushes and closes the combined log.
func (l *FileLogger) Complete(runID string) error {
	return l.allLogs.Close()
}

func formatLogLine(item types.WorkItemView) string {
	line := fmt.Sprintf("%s %-8s #%d %s capability=%s variant=%s value=%s duration=%s",
		time.Now().UTC().Format(time.RFC3339),
		item.Status,
		item.ID,
		item.Descriptor.String(),
		item.Capability,
		item.ConfigTitle,
		item.ConfigValue,
		item.Duration.Round(time.Millisecond))
	if item.Comments != "" {
		line += " comments=" + fmt.Sprintf("%q", item.Comments)
	}
	return line
}

func formatFailure(item types.WorkItemView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Item:       #%d %s\n", item.ID, item.Descriptor.String())
	fmt.Fprintf(&b, "Platform:   %s\n", item.Platform)
	fmt.Fprintf(&b, "Capability: %s\n", item.Capability)
	fmt.Fprintf(&b, "Variant:    %s = %s\n", item.ConfigTitle, item.ConfigValue)
	if item.StartTime != nil {
		fmt.Fprintf(&b, "Started:    %s\n", item.StartTime.Format(time.RFC3339Nano))
	}
	if item.EndTime != nil {
		fmt.Fprintf(&b, "Ended:      %s\n", item.EndTime.Format(time.RFC3339Nano))
	}
	fmt.Fprintf(&b, "\n%s\n", item.Comments)
	return b.String()
}

// SafeFilename replaces everything but letters, digits, dots, dashes and
// underscores.
func SafeFilename(name string) string {
	return strings.Trim(unsafeFilenameChars.ReplaceAllString(name, "_"), "_")
}
