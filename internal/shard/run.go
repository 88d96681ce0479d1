package shard

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/maxkimambo/shardrun/internal/executor"
	"github.com/maxkimambo/shardrun/internal/progress"
)

// Reporter is the failure sink shared by everything a run fans out to.
type Reporter interface {
	ReportFailure(messages ...string)
	Failed() bool
}

// Run is the context handed to a task group. It is shared by every
// concurrently running branch of the group.
type Run struct {
	Shard       string
	Subshard    Spec
	ShuffleSeed *int64

	// Passthrough arguments are appended to invocations of the main tool
	Passthrough []string

	Reporter Reporter
	Runner   *executor.Runner
	Log      *logrus.Entry
}

// Items shuffles items when a seed is configured and then applies the
// subshard spec, so i_n addresses a stable slice of the shuffled order.
func Items[T any](run *Run, items []T, named map[string][]T) ([]T, error) {
	if run.ShuffleSeed != nil {
		items = Shuffle(items, *run.ShuffleSeed)
		if run.Log != nil {
			run.Log.WithField("seed", *run.ShuffleSeed).Info("Shuffled test order")
		}
	}
	return Resolve(items, run.Subshard, named)
}

// Exec runs a command and reports a failure if it cannot start or exits
// non-zero. It returns whether the command succeeded.
func (run *Run) Exec(ctx context.Context, c executor.Command) bool {
	result, err := run.Runner.RunWithRetry(ctx, c)
	if err != nil {
		run.Reporter.ReportFailure(
			fmt.Sprintf("%s: could not run %s", run.Shard, c.Name()),
			err.Error(),
		)
		return false
	}
	if !result.Succeeded() {
		lines := []string{
			fmt.Sprintf("%s: %s failed with exit code %d", run.Shard, c.Name(), result.ExitCode),
			fmt.Sprintf("Command: %s", c),
		}
		if result.Attempts > 1 {
			lines = append(lines, fmt.Sprintf("Attempts: %d", result.Attempts))
		}
		run.Reporter.ReportFailure(lines...)
		return false
	}
	return true
}

// ExecAll runs the commands one after another, continuing past failures.
func (run *Run) ExecAll(ctx context.Context, commands []executor.Command) {
	tracker := progress.NewTracker(len(commands))
	for _, c := range commands {
		run.track(tracker, c, func() bool { return run.Exec(ctx, c) })
	}
}

// ExecParallel fans the commands out and waits for all of them.
func (run *Run) ExecParallel(ctx context.Context, commands []executor.Command) error {
	tracker := progress.NewTracker(len(commands))
	thunks := make([]func(context.Context) error, len(commands))
	for i, c := range commands {
		thunks[i] = func(ctx context.Context) error {
			run.track(tracker, c, func() bool { return run.Exec(ctx, c) })
			return nil
		}
	}
	return run.Runner.RunMany(ctx, thunks...)
}

func (run *Run) track(tracker *progress.Tracker, c executor.Command, exec func() bool) {
	tracker.Start(c.Name())
	ok := false
	defer func() {
		tracker.Finish(c.Name(), ok)
		if line, due := tracker.Due(); due && run.Log != nil {
			run.Log.Info(line)
		}
	}()
	ok = exec()
}

// WithPassthrough returns args followed by the run's passthrough arguments.
func (run *Run) WithPassthrough(args ...string) []string {
	out := make([]string, 0, len(args)+len(run.Passthrough))
	out = append(out, args...)
	return append(out, run.Passthrough...)
}

// Describe summarises the run for log lines.
func (run *Run) Describe() string {
	var sb strings.Builder
	sb.WriteString(run.Shard)
	if s := run.Subshard.String(); s != "" {
		sb.WriteString(" (subshard ")
		sb.WriteString(s)
		sb.WriteString(")")
	}
	return sb.String()
}
