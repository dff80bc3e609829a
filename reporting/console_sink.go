package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// ConsoleSink prints one line per finished attempt while a run is in progress.
type ConsoleSink struct {
	out   io.Writer
	color bool
	mu    sync.Mutex
}

func NewConsoleSink(out io.Writer, color bool) *ConsoleSink {
	return &ConsoleSink{out: out, color: color}
}

func (c *ConsoleSink) Consume(item types.WorkItemView, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintln(c.out, c.FormatLine(item))
	return err
}

// FormatLine renders an item as a single console line.
func (c *ConsoleSink) FormatLine(item types.WorkItemView) string {
	status := fmt.Sprintf("%-8s", item.Status)
	if c.color {
		status = statusColors(item.Status).Sprint(status)
	}
	line := fmt.Sprintf("%s #%d %s [%s | %s] %s",
		status,
		item.ID,
		item.Descriptor.String(),
		item.Capability,
		item.ConfigTitle,
		formatDuration(item.Duration))
	if item.Comments != "" {
		line += " - " + strings.ReplaceAll(item.Comments, "\n", "; ")
	}
	return line
}

func statusColors(status types.TestStatus) text.Colors {
	switch status {
	case types.TestStatusPassed:
		return text.Colors{text.FgGreen, text.Bold}
	case types.TestStatusFailed:
		return text.Colors{text.FgRed, text.Bold}
	case types.TestStatusBlocked:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgHiBlack}
	}
}
