package types

import (
	"fmt"
	"slices"
)

// TestStatus represents the lifecycle state of a work item
type TestStatus string

const (
	TestStatusUntested   TestStatus = "Untested"
	TestStatusInProgress TestStatus = "InProgress"
	TestStatusPassed     TestStatus = "Passed"
	TestStatusFailed     TestStatus = "Failed"
	TestStatusBlocked    TestStatus = "Blocked"
	TestStatusRetest     TestStatus = "Retest"
)

var allStatuses = []TestStatus{
	TestStatusUntested,
	TestStatusInProgress,
	TestStatusPassed,
	TestStatusFailed,
	TestStatusBlocked,
	TestStatusRetest,
}

// AllStatuses returns every member of the closed status set.
func AllStatuses() []TestStatus {
	return slices.Clone(allStatuses)
}

// IsValid reports whether s belongs to the closed status set.
func (s TestStatus) IsValid() bool {
	return slices.Contains(allStatuses, s)
}

// IsTerminal is true once an item has reached an outcome that ends its run.
func (s TestStatus) IsTerminal() bool {
	switch s {
	case TestStatusPassed, TestStatusFailed, TestStatusBlocked:
		return true
	}
	return false
}

// IsEligible reports whether an item in this status may be picked for execution.
func (s TestStatus) IsEligible() bool {
	return s == TestStatusUntested || s == TestStatusRetest
}

func (s TestStatus) String() string {
	return string(s)
}

// ParseTestStatus converts a persisted status string back into a TestStatus.
func ParseTestStatus(s string) (TestStatus, error) {
	status := TestStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown test status %q", s)
	}
	return status, nil
}
