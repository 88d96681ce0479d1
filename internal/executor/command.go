package executor

import (
	"fmt"
	"strings"
	"time"
)

// Command describes one external process invocation.
type Command struct {
	// Label identifies the command in logs and failure reports
	Label string

	Executable string
	Args       []string

	// Dir overrides the working directory when set
	Dir string

	// Env entries (KEY=VALUE) are added on top of the inherited environment
	Env []string

	// Retries is how many extra attempts a failing command gets
	Retries int
}

// String renders the command line the way it would be typed.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Executable)
	for _, arg := range c.Args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = fmt.Sprintf("%q", arg)
		}
		parts = append(parts, arg)
	}
	line := strings.Join(parts, " ")
	if c.Dir != "" {
		line += fmt.Sprintf(" (in %s)", c.Dir)
	}
	return line
}

// Name returns the label, falling back to the executable.
func (c Command) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Executable
}

// Result is the outcome of running a Command. A non-zero ExitCode is not an
// error; callers decide whether it counts as a failure.
type Result struct {
	ExitCode int

	// Output holds stdout and stderr interleaved in the order they were written
	Output []byte

	Duration time.Duration
	Attempts int
}

// Succeeded reports whether the process exited with status zero.
func (r *Result) Succeeded() bool {
	return r.ExitCode == 0
}
