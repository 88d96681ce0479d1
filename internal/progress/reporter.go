// Package progress tracks how far a shard has got through its commands.
package progress

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Info is a snapshot of a tracker
type Info struct {
	Total     int
	Completed int
	Failed    int
	Running   []string

	Elapsed           time.Duration
	EstimatedTimeLeft time.Duration
}

// Tracker counts commands as they start and finish. It is safe for
// concurrent use.
type Tracker struct {
	mu             sync.Mutex
	total          int
	completed      int
	failed         int
	running        map[string]int
	startTime      time.Time
	lastReportTime time.Time
	reportInterval time.Duration
	now            func() time.Time
}

// NewTracker creates a tracker for total commands
func NewTracker(total int) *Tracker {
	now := time.Now()
	return &Tracker{
		total:          total,
		running:        make(map[string]int),
		startTime:      now,
		lastReportTime: now,
		reportInterval: 30 * time.Second,
		now:            time.Now,
	}
}

// WithInterval sets the minimum time between progress lines
func (t *Tracker) WithInterval(interval time.Duration) *Tracker {
	t.reportInterval = interval
	return t
}

// Start marks a command as running
func (t *Tracker) Start(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running[name]++
}

// Finish marks a command as done
func (t *Tracker) Finish(name string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running[name] > 1 {
		t.running[name]--
	} else {
		delete(t.running, name)
	}
	t.completed++
	if !success {
		t.failed++
	}
}

// Snapshot returns the current counters
func (t *Tracker) Snapshot() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Info {
	running := make([]string, 0, len(t.running))
	for name := range t.running {
		running = append(running, name)
	}
	sort.Strings(running)

	elapsed := t.now().Sub(t.startTime)
	return Info{
		Total:             t.total,
		Completed:         t.completed,
		Failed:            t.failed,
		Running:           running,
		Elapsed:           elapsed,
		EstimatedTimeLeft: CalculateETA(t.completed, t.total, elapsed),
	}
}

// Due returns a progress line when the report interval has passed since the
// last one, and false otherwise. The final command always produces a line.
func (t *Tracker) Due() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.completed < t.total && now.Sub(t.lastReportTime) < t.reportInterval {
		return "", false
	}
	t.lastReportTime = now
	return Format(t.snapshotLocked()), true
}

// Format renders a snapshot as a single progress line
func Format(info Info) string {
	var sb strings.Builder

	percentage := 0.0
	if info.Total > 0 {
		percentage = float64(info.Completed) / float64(info.Total) * 100
	}
	sb.WriteString(fmt.Sprintf("Progress: %d/%d commands completed (%.1f%%)", info.Completed, info.Total, percentage))

	if info.Failed > 0 {
		sb.WriteString(fmt.Sprintf(", %d failed", info.Failed))
	}
	sb.WriteString(fmt.Sprintf(" | Elapsed: %s", FormatDuration(info.Elapsed)))
	if info.EstimatedTimeLeft > 0 {
		sb.WriteString(fmt.Sprintf(" | ETA: %s", FormatDuration(info.EstimatedTimeLeft)))
	}
	if len(info.Running) > 0 {
		sb.WriteString(fmt.Sprintf(" | Running: %s", strings.Join(info.Running, ", ")))
	}
	return sb.String()
}

// CalculateETA estimates time remaining based on current progress
func CalculateETA(completed, total int, elapsed time.Duration) time.Duration {
	if completed <= 0 || total <= 0 || completed >= total {
		return 0
	}

	averageTimePerTask := elapsed / time.Duration(completed)
	remainingTasks := total - completed
	return averageTimePerTask * time.Duration(remainingTasks)
}

// FormatDuration formats a duration in a user-friendly way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
