package executor

import (
	"bytes"
	"io"
	"sync"
)

// outputSink captures a command's output and decides when it becomes
// visible. Buffered output is written to out only on flush or reveal;
// once streaming, every write goes straight through.
type outputSink struct {
	mu        sync.Mutex
	out       io.Writer
	buf       bytes.Buffer
	flushed   int
	streaming bool
	done      bool
}

func newOutputSink(out io.Writer, streaming bool) *outputSink {
	return &outputSink{out: out, streaming: streaming}
}

func (s *outputSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, _ := s.buf.Write(p)
	if s.streaming {
		s.writePending()
	}
	return n, nil
}

// reveal flushes everything captured so far and switches to streaming. It
// returns false if the command already finished or was already streaming.
func (s *outputSink) reveal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done || s.streaming {
		return false
	}
	s.streaming = true
	s.writePending()
	return true
}

// flush writes any output not yet shown.
func (s *outputSink) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writePending()
}

// finish stops the watchdog from revealing output after the command ended.
func (s *outputSink) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
}

func (s *outputSink) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	return out
}

// writePending must be called with mu held.
func (s *outputSink) writePending() {
	pending := s.buf.Bytes()[s.flushed:]
	if len(pending) == 0 {
		return
	}
	_, _ = s.out.Write(pending)
	s.flushed = s.buf.Len()
}

// lockedWriter serializes writes from commands running side by side.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
