// Package logging is a thin wrapper over zap, giving every component a
// named sub-logger instead of passing *zap.Logger around by hand.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base *zap.Logger
)

func init() {
	base = mustBuild(zapcore.InfoLevel)
}

func mustBuild(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a no-op logger rather than panicking a library caller.
		return zap.NewNop()
	}
	return l
}

// SetLevel reconfigures the process-wide base logger, used by config's
// development-mode hot reload (SPEC_FULL §10.3).
func SetLevel(level zapcore.Level) {
	mu.Lock()
	defer mu.Unlock()
	base = mustBuild(level)
}

// Named returns a logger scoped to the given component name, e.g.
// logging.Named("storage"), logging.Named("executor.match").
func Named(component string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(component)
}

// Sync flushes any buffered log entries; call on clean shutdown.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}
