package failure

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets concurrent reporters share one output buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAggregator_StartsClean(t *testing.T) {
	agg := New(&bytes.Buffer{}, false)

	assert.False(t, agg.Failed())
	assert.Empty(t, agg.Messages())
	assert.Equal(t, ExitCodeSuccess, agg.ExitCode())
}

func TestAggregator_ReportFailure(t *testing.T) {
	var out bytes.Buffer
	agg := New(&out, false)

	agg.ReportFailure("analyze failed", "exit code 3")

	assert.True(t, agg.Failed())
	assert.Equal(t, 1, agg.Reports())
	assert.Equal(t, []string{"║ analyze failed", "║ exit code 3"}, agg.Messages())
	assert.Equal(t, ExitCodeFailure, agg.ExitCode())

	// Echoed immediately with a marker
	assert.Contains(t, out.String(), "ERROR #1")
	assert.Contains(t, out.String(), "║ analyze failed\n║ exit code 3\n")
}

func TestAggregator_ReportWithoutMessages(t *testing.T) {
	var out bytes.Buffer
	agg := New(&out, false)

	agg.ReportFailure()

	assert.True(t, agg.Failed())
	assert.Equal(t, ExitCodeFailure, agg.ExitCode())
	assert.Equal(t, []string{MessagePrefix + "failure reported without details"}, agg.Messages())
	assert.Contains(t, out.String(), "failure reported without details")
}

func TestAggregator_FailedIsMonotonic(t *testing.T) {
	agg := New(&bytes.Buffer{}, false)
	agg.ReportFailure("one")
	agg.ReportFailure()

	assert.True(t, agg.Failed())
	assert.Equal(t, 2, agg.Reports())
	assert.Len(t, agg.Messages(), 1)
}

func TestAggregator_MessagesReturnsCopy(t *testing.T) {
	agg := New(&bytes.Buffer{}, false)
	agg.ReportFailure("original")

	msgs := agg.Messages()
	msgs[0] = "mutated"

	assert.Equal(t, []string{"║ original"}, agg.Messages())
}

func TestAggregator_AbortOnError(t *testing.T) {
	var out bytes.Buffer
	var exitCode = -1
	agg := New(&out, true).WithExit(func(code int) { exitCode = code })

	secondReached := false
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r)
			assert.True(t, IsAborted(r))
		}()
		agg.ReportFailure("first")
		secondReached = true
		agg.ReportFailure("second")
	}()

	assert.Equal(t, ExitCodeAborted, exitCode)
	assert.False(t, secondReached)
	assert.Equal(t, []string{"║ first"}, agg.Messages())
	assert.Contains(t, out.String(), "Aborting after first error")
}

func TestAggregator_ConcurrentReports(t *testing.T) {
	out := &syncBuffer{}
	agg := New(out, false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.ReportFailure(fmt.Sprintf("worker %d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, agg.Reports())
	assert.Len(t, agg.Messages(), 50)
	assert.Contains(t, out.String(), "ERROR #50")
}

func TestAggregator_Summary(t *testing.T) {
	agg := New(&bytes.Buffer{}, false)
	agg.ReportFailure("tool_tests: general exited with 1")
	agg.ReportFailure("tool_tests: commands exited with 2")

	summary := agg.Summary()
	assert.Contains(t, summary, "2 failure(s) reported")
	assert.Contains(t, summary, "tool_tests: general exited with 1")
	assert.Contains(t, summary, "tool_tests: commands exited with 2")
}

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(Aborted))
	assert.False(t, IsAborted("boom"))
	assert.False(t, IsAborted(nil))
}
