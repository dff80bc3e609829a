// Package reporting partitions a finished result set and renders it.
package reporting

import (
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-matrix/metrics"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Summary is the partition of a result set handed to reporters.
type Summary struct {
	Passed   []types.WorkItemView `json:"passed"`
	Failed   []types.WorkItemView `json:"failed"`
	Untested []types.WorkItemView `json:"untested"`
	Blocked  []types.WorkItemView `json:"blocked"`

	// Unclassified holds items whose status belongs to none of the buckets.
	// A valid result set never has any.
	Unclassified []types.WorkItemView `json:"unclassified,omitempty"`

	Total int `json:"total"`
}

// RunInfo describes the run a summary belongs to.
type RunInfo struct {
	RunID       string        `json:"run_id"`
	Name        string        `json:"name"`
	Platform    string        `json:"platform"`
	Environment string        `json:"environment"`
	StartTime   time.Time     `json:"start_time"`
	Duration    time.Duration `json:"duration"`
	Rounds      int           `json:"rounds"`
}

// Aggregate splits items into status buckets. Statuses outside the buckets are
// logged loudly and counted as unclassified; the remaining items are still
// reported.
func Aggregate(items []types.WorkItemView, logger log.Logger) *Summary {
	if logger == nil {
		logger = log.New()
	}
	s := &Summary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case types.TestStatusPassed:
			s.Passed = append(s.Passed, item)
		case types.TestStatusFailed:
			s.Failed = append(s.Failed, item)
		case types.TestStatusUntested:
			s.Untested = append(s.Untested, item)
		case types.TestStatusBlocked:
			s.Blocked = append(s.Blocked, item)
		default:
			logger.Warn("UNRECOGNISED TEST STATUS in result set, item is excluded from the status buckets",
				"id", item.ID,
				"item", item.Descriptor.String(),
				"status", string(item.Status))
			metrics.RecordError("unrecognised_status")
			s.Unclassified = append(s.Unclassified, item)
		}
	}
	return s
}

func (s *Summary) PassedCount() int   { return len(s.Passed) }
func (s *Summary) FailedCount() int   { return len(s.Failed) }
func (s *Summary) UntestedCount() int { return len(s.Untested) }
func (s *Summary) BlockedCount() int  { return len(s.Blocked) }

// Counts returns the bucket sizes keyed by status.
func (s *Summary) Counts() map[types.TestStatus]int {
	return map[types.TestStatus]int{
		types.TestStatusPassed:   len(s.Passed),
		types.TestStatusFailed:   len(s.Failed),
		types.TestStatusUntested: len(s.Untested),
		types.TestStatusBlocked:  len(s.Blocked),
	}
}

// Result is "pass" when nothing failed and nothing is left untested or unclassified.
func (s *Summary) Result() string {
	if len(s.Failed) > 0 || len(s.Untested) > 0 || len(s.Unclassified) > 0 {
		return "fail"
	}
	return "pass"
}

// All returns every item in bucket order.
func (s *Summary) All() []types.WorkItemView {
	all := make([]types.WorkItemView, 0, s.Total)
	all = append(all, s.Failed...)
	all = append(all, s.Blocked...)
	all = append(all, s.Untested...)
	all = append(all, s.Passed...)
	all = append(all, s.Unclassified...)
	return all
}
