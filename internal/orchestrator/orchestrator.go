// Package orchestrator drives one dispatcher run from raw arguments to an
// exit code.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/maxkimambo/shardrun/internal/config"
	disperrors "github.com/maxkimambo/shardrun/internal/errors"
	"github.com/maxkimambo/shardrun/internal/executor"
	"github.com/maxkimambo/shardrun/internal/failure"
	"github.com/maxkimambo/shardrun/internal/logger"
	"github.com/maxkimambo/shardrun/internal/shard"
	"github.com/maxkimambo/shardrun/internal/utils"
)

// RegistryBuilder produces the task groups for a run together with the
// runner settings they need.
type RegistryBuilder func(cfg *config.RunConfiguration) (*shard.Registry, *executor.Config, error)

// Options contains the inputs of a run
type Options struct {
	Args      []string
	LookupEnv config.LookupEnv
	Build     RegistryBuilder

	// Out receives failure reports, the crash banner and the summary
	Out io.Writer

	// CommandOut receives the output of external commands
	CommandOut io.Writer

	// Exit terminates the process on abort-on-error. Defaults to os.Exit.
	Exit func(int)
}

// Result describes how a run ended
type Result struct {
	State    State
	ExitCode int
	RunID    string
	Shard    string
	Duration time.Duration

	// Failures is the audit log of reported failures
	Failures []string
}

type orchestrator struct {
	opts   Options
	result *Result
	start  time.Time
}

// Execute performs a complete run. It never panics; every outcome is
// described by the returned Result.
func Execute(ctx context.Context, opts Options) *Result {
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	if opts.CommandOut == nil {
		opts.CommandOut = os.Stdout
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}

	o := &orchestrator{
		opts:   opts,
		result: &Result{State: StateInitializing},
		start:  time.Now(),
	}
	o.execute(ctx)
	o.result.Duration = time.Since(o.start)
	return o.result
}

func (o *orchestrator) execute(ctx context.Context) {
	cfg, err := config.Resolve(config.ParseArgs(o.opts.Args), o.opts.LookupEnv)
	if err != nil {
		o.crash(err)
		return
	}
	o.result.RunID = cfg.RunID
	o.result.Shard = cfg.ShardName

	log := logger.ForRun(cfg.RunID, cfg.ShardName)
	log.WithField("manifest", cfg.ManifestPath).Debug("Configuration resolved")

	if o.opts.Build == nil {
		o.crash(fmt.Errorf("no registry builder configured"))
		return
	}
	registry, execCfg, err := o.opts.Build(cfg)
	if err != nil {
		o.crash(err)
		return
	}
	if execCfg == nil {
		execCfg = executor.DefaultConfig()
	}
	execCfg.Verbose = cfg.Verbose
	execCfg.DryRun = cfg.DryRun

	o.transition(StateSelecting)
	group, err := registry.Select(cfg.ShardName)
	if err != nil {
		o.crash(err)
		return
	}

	o.transition(StateRunning)
	agg := failure.New(o.opts.Out, cfg.AbortOnError).WithExit(o.opts.Exit)
	run := &shard.Run{
		Shard:       cfg.ShardName,
		Subshard:    cfg.Subshard,
		ShuffleSeed: cfg.ShuffleSeed,
		Passthrough: cfg.PassthroughArgs,
		Reporter:    agg,
		Runner:      executor.NewRunner(o.opts.CommandOut, execCfg),
		Log:         log,
	}

	logger.User.Starting(run.Describe())
	crashed, aborted := o.runGuarded(ctx, group, run, agg)
	o.result.Failures = agg.Messages()

	if !aborted && agg.Failed() {
		_, _ = io.WriteString(o.opts.Out, agg.Summary()+"\n")
	}

	switch {
	case aborted:
		o.finish(StateAbortedOnError, failure.ExitCodeAborted)
	case crashed:
		o.finish(StateCrashedUnexpectedly, failure.ExitCodeUnexpected)
	case agg.Failed():
		o.finish(StateFailed, failure.ExitCodeFailure)
	default:
		_, _ = io.WriteString(o.opts.Out, utils.Success(fmt.Sprintf("%s passed", run.Describe()))+"\n")
		o.finish(StateSucceeded, failure.ExitCodeSuccess)
	}
	log.WithField("state", o.result.State.String()).Infof("Run finished in %s", time.Since(o.start).Round(time.Millisecond))
}

// runGuarded is the single boundary for errors that escape a task group.
func (o *orchestrator) runGuarded(ctx context.Context, group *shard.TaskGroup, run *shard.Run, agg *failure.Aggregator) (crashed, aborted bool) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if failure.IsAborted(rec) {
			aborted = true
			return
		}
		crashed = true
		aborted = reportUnexpected(agg, fmt.Errorf("panic: %v", rec), string(debug.Stack()))
	}()

	if err := group.Run(ctx, run); err != nil {
		crashed = true
		aborted = reportUnexpected(agg, err, fmt.Sprintf("%+v", err))
	}
	return crashed, aborted
}

// reportUnexpected routes an escaped error through the aggregator and
// reports whether that report triggered abort-on-error.
func reportUnexpected(agg *failure.Aggregator, err error, trace string) (aborted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			if !failure.IsAborted(rec) {
				panic(rec)
			}
			aborted = true
		}
	}()
	agg.ReportFailure("UNEXPECTED ERROR!", err.Error(), trace)
	return false
}

// Headings printed above the error banner when a run cannot start
const (
	configurationHeading = "Configuration error: no task was run."
	startupHeading       = "shardrun could not start the run."
)

// crash ends the run before any task executed.
func (o *orchestrator) crash(err error) {
	heading := startupHeading
	if disperrors.IsConfigurationError(err) {
		heading = configurationHeading
	}
	_, _ = io.WriteString(o.opts.Out, heading+"\n"+disperrors.FormatForCLI(err)+"\n")
	logger.Op.WithFields(map[string]interface{}{
		"state": o.result.State.String(),
		"code":  disperrors.GetErrorCode(err),
	}).Error("Run could not start")
	o.finish(StateCrashedUnexpectedly, failure.ExitCodeUnexpected)
}

func (o *orchestrator) transition(next State) {
	logger.Op.Debugf("State %s -> %s", o.result.State, next)
	o.result.State = next
}

func (o *orchestrator) finish(state State, exitCode int) {
	o.transition(state)
	o.result.ExitCode = exitCode
}
