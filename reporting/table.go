package reporting

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// TableFormatter renders a summary as a console table.
type TableFormatter struct {
	out io.Writer
}

func NewTableFormatter(out io.Writer) *TableFormatter {
	return &TableFormatter{out: out}
}

// Render writes one row per item, failures first, with a totals footer.
func (f *TableFormatter) Render(run RunInfo, s *Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Test Run Results: %s (%s, %s)", run.Name, run.RunID, formatDuration(run.Duration)))

	t.AppendHeader(table.Row{
		"ID", "Pack", "Suite", "Case", "Capability", "Variant", "Status", "Duration", "Comments",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "ID", Align: text.AlignRight},
		{Name: "Pack", AutoMerge: true},
		{Name: "Suite", AutoMerge: true},
		{Name: "Case", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Comments", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, bucket := range [][]types.WorkItemView{s.Failed, s.Blocked, s.Untested, s.Passed, s.Unclassified} {
		rows := sortedByID(bucket)
		for _, item := range rows {
			t.AppendRow(table.Row{
				item.ID,
				item.Descriptor.Pack,
				item.Descriptor.Suite,
				item.Descriptor.Case,
				item.Capability,
				item.ConfigTitle,
				getResultString(item.Status),
				formatDuration(item.Duration),
				item.Comments,
			})
		}
	}

	switch {
	case s.FailedCount() > 0 || len(s.Unclassified) > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case s.BlockedCount() > 0 || s.UntestedCount() > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"",
		"TOTAL",
		s.Total,
		fmt.Sprintf("passed %d", s.PassedCount()),
		fmt.Sprintf("failed %d", s.FailedCount()),
		fmt.Sprintf("blocked %d", s.BlockedCount()),
		fmt.Sprintf("untested %d", s.UntestedCount()),
		formatDuration(run.Duration),
		getResultString(overallStatus(s)),
	})

	t.Render()
}

func overallStatus(s *Summary) types.TestStatus {
	if s.Result() == "pass" {
		return types.TestStatusPassed
	}
	return types.TestStatusFailed
}

func sortedByID(items []types.WorkItemView) []types.WorkItemView {
	out := make([]types.WorkItemView, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPassed:
		return "✓ " + string(status)
	case types.TestStatusFailed:
		return "✗ " + string(status)
	case types.TestStatusBlocked:
		return "⊘ " + string(status)
	default:
		return "? " + string(status)
	}
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
