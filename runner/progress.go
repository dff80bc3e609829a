package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-matrix/types"
	"github.com/ethereum/go-ethereum/log"
)

// ProgressIndicator interface for UI updates
type ProgressIndicator interface {
	StartRound(round int, totalItems int)
	StartItem(name string)
	UpdateItem(name string, status types.TestStatus)
	CompleteRound(round int)
	Stop()
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) StartRound(round int, totalItems int)             {}
func (n *noOpProgressIndicator) StartItem(name string)                            {}
func (n *noOpProgressIndicator) UpdateItem(name string, status types.TestStatus) {}
func (n *noOpProgressIndicator) CompleteRound(round int)                          {}
func (n *noOpProgressIndicator) Stop()                                            {}

// consoleProgressIndicator logs periodic progress of the current round
type consoleProgressIndicator struct {
	logger   log.Logger
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex

	round          int
	completed      int
	total          int
	counts         map[types.TestStatus]int
	roundStartTime time.Time

	// item name -> start time
	running map[string]time.Time
}

// NewConsoleProgressIndicator creates a progress indicator that shows updates in the console
func NewConsoleProgressIndicator(logger log.Logger, updateInterval time.Duration) ProgressIndicator {
	if updateInterval == 0 {
		updateInterval = 30 * time.Second
	}

	indicator := &consoleProgressIndicator{
		logger:  logger,
		ticker:  time.NewTicker(updateInterval),
		stopCh:  make(chan struct{}),
		counts:  make(map[types.TestStatus]int),
		running: make(map[string]time.Time),
	}

	go indicator.progressReporter()

	return indicator
}

func (c *consoleProgressIndicator) StartRound(round int, totalItems int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.round = round
	c.total = totalItems
	c.completed = 0
	c.counts = make(map[types.TestStatus]int)
	c.roundStartTime = time.Now()
	c.running = make(map[string]time.Time)

	c.logger.Info("Starting round", "round", round, "items", totalItems)
}

func (c *consoleProgressIndicator) StartItem(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running[name] = time.Now()
	c.logger.Debug("Item started", "item", name, "running", len(c.running))
}

func (c *consoleProgressIndicator) UpdateItem(name string, status types.TestStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.running, name)
	c.completed++
	c.counts[status]++

	c.logger.Debug("Item completed", "item", name, "status", status, "completed", c.completed, "total", c.total)
}

func (c *consoleProgressIndicator) CompleteRound(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Since(c.roundStartTime).Truncate(time.Millisecond)
	c.logger.Info("Completed round",
		"round", round,
		"items", c.total,
		"passed", c.counts[types.TestStatusPassed],
		"failed", c.counts[types.TestStatusFailed],
		"blocked", c.counts[types.TestStatusBlocked],
		"duration", duration)
	c.running = make(map[string]time.Time)
}

func (c *consoleProgressIndicator) progressReporter() {
	for {
		select {
		case <-c.ticker.C:
			c.reportProgress()
		case <-c.stopCh:
			return
		}
	}
}

func (c *consoleProgressIndicator) reportProgress() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var percentComplete float64
	if c.total > 0 {
		percentComplete = float64(c.completed) * 100.0 / float64(c.total)
	}

	c.logger.Info("Progress update",
		"round", c.round,
		"completed", c.completed,
		"total", c.total,
		"percent", fmt.Sprintf("%.1f%%", percentComplete),
		"numRunning", len(c.running),
		"longestRunning", formatRunning(c.running, 3))
}

func (c *consoleProgressIndicator) Stop() {
	c.stopOnce.Do(func() {
		c.ticker.Stop()
		close(c.stopCh)
	})
}

// formatRunning lists the longest running items first, at most maxShow of them.
func formatRunning(running map[string]time.Time, maxShow int) string {
	if len(running) == 0 {
		return ""
	}

	type runningItem struct {
		name     string
		duration time.Duration
	}

	now := time.Now()
	items := make([]runningItem, 0, len(running))
	for name, start := range running {
		items = append(items, runningItem{name: name, duration: now.Sub(start)})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].duration > items[j].duration
	})

	var parts []string
	for i, item := range items {
		if i >= maxShow {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%v)", item.name, item.duration.Truncate(time.Second)))
	}
	if len(items) > maxShow {
		parts = append(parts, fmt.Sprintf("+%d more", len(items)-maxShow))
	}
	return strings.Join(parts, ", ")
}
