package types

import (
	"strings"
	"sync/atomic"
	"time"
)

var workItemSeq atomic.Uint64

// NextWorkItemID returns the next process-wide work item identifier.
// Identifiers start at 1 and are never reused.
func NextWorkItemID() uint64 {
	return workItemSeq.Add(1)
}

// WorkItem is one concrete execution of a case for a capability and variant.
// The identity fields are fixed at construction, only the scheduler mutates
// the lifecycle fields, and everything downstream of it reads a WorkItemView.
type WorkItem struct {
	id             uint64
	descriptor     Descriptor
	platform       string
	capability     string
	configTitle    string
	configValue    string
	productionSafe bool
	screenshotDir  string

	Status    TestStatus
	StartTime *time.Time
	EndTime   *time.Time
	Comments  string
}

// WorkItemSpec holds the immutable attributes a new work item is created with.
type WorkItemSpec struct {
	Descriptor     Descriptor
	Platform       string
	Capability     string
	ConfigTitle    string
	ConfigValue    string
	ProductionSafe bool
	ScreenshotDir  string
}

// NewWorkItem creates an Untested work item with a fresh identifier.
func NewWorkItem(spec WorkItemSpec) *WorkItem {
	if spec.Capability == "" {
		spec.Capability = NoCapability
	}
	if spec.ConfigTitle == "" {
		spec.ConfigTitle = NoVariant
	}
	if spec.ConfigValue == "" {
		spec.ConfigValue = NoVariant
	}
	return &WorkItem{
		id:             NextWorkItemID(),
		descriptor:     spec.Descriptor,
		platform:       spec.Platform,
		capability:     spec.Capability,
		configTitle:    spec.ConfigTitle,
		configValue:    spec.ConfigValue,
		productionSafe: spec.ProductionSafe,
		screenshotDir:  spec.ScreenshotDir,
		Status:         TestStatusUntested,
	}
}

func (w *WorkItem) ID() uint64             { return w.id }
func (w *WorkItem) Descriptor() Descriptor { return w.descriptor }
func (w *WorkItem) Platform() string       { return w.platform }
func (w *WorkItem) Capability() string     { return w.capability }
func (w *WorkItem) ConfigTitle() string    { return w.configTitle }
func (w *WorkItem) ConfigValue() string    { return w.configValue }
func (w *WorkItem) ProductionSafe() bool   { return w.productionSafe }
func (w *WorkItem) ScreenshotDir() string  { return w.screenshotDir }

// Key identifies the item across runs: same case, platform, capability and variant.
func (w *WorkItem) Key() string {
	return strings.Join([]string{w.descriptor.String(), w.platform, w.capability, w.configTitle}, "|")
}

// MarkInProgress records the start of an attempt.
func (w *WorkItem) MarkInProgress(now time.Time) {
	w.Status = TestStatusInProgress
	w.StartTime = &now
	w.EndTime = nil
}

func (w *WorkItem) MarkPassed(now time.Time) {
	w.Status = TestStatusPassed
	w.EndTime = &now
}

// MarkFailed ends the attempt as Failed and appends the diagnostic to the comments.
func (w *WorkItem) MarkFailed(now time.Time, comment string) {
	w.Status = TestStatusFailed
	w.EndTime = &now
	w.AppendComment(comment)
}

// MarkBlocked ends the item without running it. Start and end are the same instant.
func (w *WorkItem) MarkBlocked(now time.Time, reason string) {
	w.Status = TestStatusBlocked
	w.StartTime = &now
	w.EndTime = &now
	w.AppendComment(reason)
}

// ResetForRetry prepares a failed item for the next round.
func (w *WorkItem) ResetForRetry() {
	w.Status = TestStatusRetest
	w.Comments = ""
	w.StartTime = nil
	w.EndTime = nil
}

func (w *WorkItem) AppendComment(comment string) {
	if comment == "" {
		return
	}
	if w.Comments == "" {
		w.Comments = comment
		return
	}
	w.Comments += "\n" + comment
}

// Duration is zero until both start and end are known.
func (w *WorkItem) Duration() time.Duration {
	if w.StartTime == nil || w.EndTime == nil {
		return 0
	}
	return w.EndTime.Sub(*w.StartTime)
}

// Snapshot returns a detached, read-only copy of the item.
func (w *WorkItem) Snapshot() WorkItemView {
	v := WorkItemView{
		ID:             w.id,
		Descriptor:     w.descriptor,
		Platform:       w.platform,
		Capability:     w.capability,
		ConfigTitle:    w.configTitle,
		ConfigValue:    w.configValue,
		ProductionSafe: w.productionSafe,
		ScreenshotDir:  w.screenshotDir,
		Status:         w.Status,
		Comments:       w.Comments,
		Duration:       w.Duration(),
	}
	if w.StartTime != nil {
		t := *w.StartTime
		v.StartTime = &t
	}
	if w.EndTime != nil {
		t := *w.EndTime
		v.EndTime = &t
	}
	return v
}

// WorkItemView is the value handed to sinks and reporters.
type WorkItemView struct {
	ID             uint64        `json:"id"`
	Descriptor     Descriptor    `json:"descriptor"`
	Platform       string        `json:"platform"`
	Capability     string        `json:"capability"`
	ConfigTitle    string        `json:"config_title"`
	ConfigValue    string        `json:"config_value"`
	ProductionSafe bool          `json:"production_safe"`
	ScreenshotDir  string        `json:"screenshot_dir"`
	Status         TestStatus    `json:"status"`
	StartTime      *time.Time    `json:"start_time,omitempty"`
	EndTime        *time.Time    `json:"end_time,omitempty"`
	Comments       string        `json:"comments,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Key matches WorkItem.Key.
func (v WorkItemView) Key() string {
	return strings.Join([]string{v.Descriptor.String(), v.Platform, v.Capability, v.ConfigTitle}, "|")
}

// Snapshots converts a result set into views.
func Snapshots(items []*WorkItem) []WorkItemView {
	views := make([]WorkItemView, 0, len(items))
	for _, item := range items {
		views = append(views, item.Snapshot())
	}
	return views
}
