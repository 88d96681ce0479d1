package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogType decides which stream an entry is routed to
type LogType string

const (
	UserLog LogType = "user"
	OpLog   LogType = "op"
)

// UnifiedLogger owns the single logrus instance behind User and Op
type UnifiedLogger struct {
	mu     sync.RWMutex
	logger *logrus.Logger
}

var (
	unifiedLog *UnifiedLogger
	once       sync.Once
)

// GetLogger returns the process-wide logger, creating it on first use
func GetLogger() *UnifiedLogger {
	once.Do(func() {
		base := logrus.New()
		base.SetOutput(os.Stdout)
		base.SetLevel(logrus.InfoLevel)
		base.SetFormatter(&CLIFormatter{DisableTimestamp: true, DisableLevel: true})
		unifiedLog = &UnifiedLogger{logger: base}
	})
	return unifiedLog
}

// ForRun returns an op entry carrying the run id and shard name, so every
// line a run writes can be traced back to it.
func (l *UnifiedLogger) ForRun(runID, shard string) *logrus.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.logger.WithFields(logrus.Fields{
		"log_type": string(OpLog),
		"run_id":   runID,
		"shard":    shard,
	})
}

// GetInternalLogger returns the underlying logrus logger
func (l *UnifiedLogger) GetInternalLogger() *logrus.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.logger
}
