// Package store keeps the outcome of previous runs so that a later run of the
// same plan can skip work that already passed.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

var ErrNotFound = errors.New("no history for run")

// Record is the persisted outcome of one run, keyed by WorkItem.Key.
type Record struct {
	RunID    string                      `json:"run_id"`
	SavedAt  time.Time                   `json:"saved_at"`
	Statuses map[string]types.TestStatus `json:"statuses"`
}

// HistoryStore persists the latest record per run name.
type HistoryStore interface {
	Save(ctx context.Context, runName string, rec Record) error
	Load(ctx context.Context, runName string) (*Record, error)
}

// NewRecord builds a record from a finished result set.
func NewRecord(runID string, items []types.WorkItemView, now time.Time) Record {
	rec := Record{
		RunID:    runID,
		SavedAt:  now,
		Statuses: make(map[string]types.TestStatus, len(items)),
	}
	for _, item := range items {
		rec.Statuses[item.Key()] = item.Status
	}
	return rec
}

// PrimeStats reports what Prime changed.
type PrimeStats struct {
	CarriedOver int
	Retest      int
}

// Prime applies a previous record to a freshly built work list. Items that
// passed before are marked Passed and will not be started again. Items that
// failed or were blocked are marked Retest. Items unknown to the record are
// left Untested.
func Prime(items []*types.WorkItem, rec *Record) PrimeStats {
	var stats PrimeStats
	if rec == nil {
		return stats
	}
	for _, item := range items {
		if item.Status != types.TestStatusUntested {
			continue
		}
		switch rec.Statuses[item.Key()] {
		case types.TestStatusPassed:
			item.Status = types.TestStatusPassed
			item.AppendComment(fmt.Sprintf("carried over from run %s", rec.RunID))
			stats.CarriedOver++
		case types.TestStatusFailed, types.TestStatusBlocked:
			item.Status = types.TestStatusRetest
			stats.Retest++
		}
	}
	return stats
}

// MemoryStore is an in-process HistoryStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ HistoryStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Save(_ context.Context, runName string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[runName] = rec
	return nil
}

func (m *MemoryStore) Load(_ context.Context, runName string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[runName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runName)
	}
	return &rec, nil
}
