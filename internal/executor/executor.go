// Package executor runs external build and test commands and controls when
// their output becomes visible.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	disperrors "github.com/maxkimambo/shardrun/internal/errors"
	"github.com/maxkimambo/shardrun/internal/failure"
	"github.com/maxkimambo/shardrun/internal/logger"
)

// Config contains configuration for the command runner
type Config struct {
	// Verbose streams output immediately instead of buffering it
	Verbose bool

	// QuietPeriod is how long a command may run before its buffered output
	// is shown anyway. Zero disables the watchdog.
	QuietPeriod time.Duration

	// Concurrency bounds RunMany. Zero or less means unbounded.
	Concurrency int

	// DryRun logs commands without starting them
	DryRun bool

	// RetryInitialInterval is the first backoff delay between retries
	RetryInitialInterval time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		QuietPeriod:          5 * time.Minute,
		RetryInitialInterval: time.Second,
	}
}

// Runner launches commands. It is safe for concurrent use.
type Runner struct {
	config *Config
	out    io.Writer
}

// NewRunner creates a runner writing visible command output to out
func NewRunner(out io.Writer, config *Config) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Runner{
		config: config,
		out:    &lockedWriter{w: out},
	}
}

// Run starts the command, waits for it and returns its exit status. An
// error is returned only when the process could not be run at all.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Executable == "" {
		return nil, disperrors.NewCommandStartError(c.Name(), fmt.Errorf("no executable given"))
	}

	if r.config.DryRun {
		logger.User.Skipf("%s (dry run)", c)
		return &Result{Attempts: 1}, nil
	}

	logger.User.Commandf("%s", c)

	cmd := exec.CommandContext(ctx, c.Executable, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	// One comparable writer for both streams keeps them in a single ordered pipe
	sink := newOutputSink(r.out, r.config.Verbose)
	cmd.Stdout = sink
	cmd.Stderr = sink

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, disperrors.NewCommandStartError(c.Executable, err)
	}

	var watchdog *time.Timer
	if !r.config.Verbose && r.config.QuietPeriod > 0 {
		watchdog = time.AfterFunc(r.config.QuietPeriod, func() {
			if sink.reveal() {
				logger.User.Warnf("%s has been running for over %s; showing its output", c.Name(), r.config.QuietPeriod)
			}
		})
	}

	waitErr := cmd.Wait()
	if watchdog != nil {
		watchdog.Stop()
	}
	sink.finish()

	result := &Result{
		Duration: time.Since(start),
		Attempts: 1,
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			sink.flush()
			return nil, disperrors.NewCommandStartError(c.Executable, waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	if result.ExitCode != 0 {
		sink.flush()
	}
	result.Output = sink.bytes()

	logger.Op.WithFields(map[string]interface{}{
		"command":   c.Name(),
		"exit_code": result.ExitCode,
		"duration":  result.Duration.Round(time.Millisecond),
	}).Debug("Command finished")

	return result, nil
}

// RunWithRetry runs the command and, while it keeps failing, re-runs it up
// to c.Retries more times with exponential backoff. The last attempt's
// result is returned.
func (r *Runner) RunWithRetry(ctx context.Context, c Command) (*Result, error) {
	if c.Retries <= 0 {
		return r.Run(ctx, c)
	}

	var result *Result
	attempts := 0
	operation := func() error {
		attempts++
		res, err := r.Run(ctx, c)
		if err != nil {
			result = nil
			return backoff.Permanent(err)
		}
		result = res
		if !res.Succeeded() && attempts <= c.Retries {
			logger.User.Warnf("%s exited with %d, retrying (%d/%d)", c.Name(), res.ExitCode, attempts, c.Retries)
			return fmt.Errorf("%s exited with %d", c.Name(), res.ExitCode)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.RetryInitialInterval
	b.MaxElapsedTime = 0
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.Retries)), ctx))
	if result == nil {
		return nil, err
	}

	result.Attempts = attempts
	if result.Succeeded() && attempts > 1 {
		logger.User.Warnf("%s passed on attempt %d; it may be flaky", c.Name(), attempts)
	}
	return result, nil
}

// RunMany runs every thunk concurrently and waits for all of them, whether
// or not some fail. Errors are joined in thunk order. If a thunk unwinds
// because of abort-on-error, RunMany re-raises that once all others returned.
func (r *Runner) RunMany(ctx context.Context, thunks ...func(context.Context) error) error {
	var g errgroup.Group
	if r.config.Concurrency > 0 {
		g.SetLimit(r.config.Concurrency)
	}

	var mu sync.Mutex
	errs := make([]error, len(thunks))
	aborted := false

	for i, thunk := range thunks {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					mu.Lock()
					defer mu.Unlock()
					if failure.IsAborted(rec) {
						aborted = true
						return
					}
					errs[i] = fmt.Errorf("panic in parallel task %d: %v\n%s", i, rec, debug.Stack())
				}
			}()

			if err := thunk(ctx); err != nil {
				mu.Lock()
				errs[i] = err
				mu.Unlock()
			}
			// Never fail the group: siblings must keep running
			return nil
		})
	}
	_ = g.Wait()

	if aborted {
		panic(failure.Aborted)
	}
	return errors.Join(errs...)
}
