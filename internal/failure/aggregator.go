// Package failure collects every failure reported during a run and decides
// the process exit status.
package failure

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/maxkimambo/shardrun/internal/utils"
)

// Process exit statuses
const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
	// ExitCodeAborted is used when abort-on-error stops the run at the first failure.
	ExitCodeAborted = 1
	// ExitCodeUnexpected marks a dispatcher crash rather than a test failure.
	ExitCodeUnexpected = 255
)

// MessagePrefix is prepended to every line in the audit log.
const MessagePrefix = "║ "

// noDetails stands in for a report that carried no messages
const noDetails = "failure reported without details"

// Aborted is the panic value used to unwind the current goroutine when the
// exit hook returns instead of terminating the process.
var Aborted = abortSignal{}

type abortSignal struct{}

func (abortSignal) String() string { return "aborted on first error" }

// IsAborted reports whether a recovered panic value is the abort unwinding.
func IsAborted(v interface{}) bool {
	_, ok := v.(abortSignal)
	return ok
}

// Aggregator is the single sink for failure reports. It is safe for
// concurrent use.
type Aggregator struct {
	mu           sync.Mutex
	out          io.Writer
	abortOnError bool
	exit         func(int)
	failed       bool
	reports      int
	messages     []string
}

// New creates an aggregator that echoes reports to out.
func New(out io.Writer, abortOnError bool) *Aggregator {
	if out == nil {
		out = os.Stderr
	}
	return &Aggregator{
		out:          out,
		abortOnError: abortOnError,
		exit:         os.Exit,
	}
}

// WithExit replaces the function used to terminate the process on abort.
func (a *Aggregator) WithExit(exit func(int)) *Aggregator {
	a.exit = exit
	return a
}

// ReportFailure records messages and echoes them immediately. With
// abort-on-error enabled it terminates the process and does not return.
func (a *Aggregator) ReportFailure(messages ...string) {
	a.mu.Lock()
	a.failed = true
	a.reports++
	n := a.reports

	if len(messages) == 0 {
		messages = []string{noDetails}
	}

	var sb strings.Builder
	sb.WriteString(utils.ErrorMarker(fmt.Sprintf("ERROR #%d", n)))
	sb.WriteString("\n")
	for _, msg := range messages {
		line := MessagePrefix + msg
		a.messages = append(a.messages, line)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	// Write errors are ignored; there is nowhere left to report them.
	_, _ = io.WriteString(a.out, sb.String())
	abort := a.abortOnError
	a.mu.Unlock()

	if abort {
		_, _ = io.WriteString(a.out, "Aborting after first error (--abort-on-error).\n")
		a.exit(ExitCodeAborted)
		panic(Aborted)
	}
}

// Failed reports whether any failure has been recorded.
func (a *Aggregator) Failed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed
}

// Reports returns how many times ReportFailure was called.
func (a *Aggregator) Reports() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reports
}

// Messages returns a copy of the audit log.
func (a *Aggregator) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.messages))
	copy(out, a.messages)
	return out
}

// Summary renders the audit log as a boxed block for the end of the run.
func (a *Aggregator) Summary() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	title := fmt.Sprintf("%d failure(s) reported", a.reports)
	box := utils.NewBox(utils.ErrorMessage, title)
	for _, msg := range a.messages {
		box.AddLine(strings.TrimPrefix(msg, MessagePrefix))
	}
	return box.Render()
}

// ExitCode maps the aggregated state to a process exit status.
func (a *Aggregator) ExitCode() int {
	if a.Failed() {
		return ExitCodeFailure
	}
	return ExitCodeSuccess
}
