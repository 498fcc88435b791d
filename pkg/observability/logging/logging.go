// Package logging provides the shared structured logger for memvault.
//
// It wraps a zap SugaredLogger behind package-level helpers so callers can
// log without threading a logger through every constructor. The logger
// writes to stderr, keeping stdout free for shell output and the MCP
// stdio transport.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar = newLogger(zapcore.InfoLevel)
)

func newLogger(level zapcore.Level) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap only fails on invalid sink paths, which cannot happen here.
		panic(fmt.Sprintf("logging: build logger: %v", err))
	}
	return logger.Sugar()
}

// SetLevel reconfigures the package logger to the given level
// ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: invalid level %q: %w", level, err)
	}
	mu.Lock()
	sugar = newLogger(parsed)
	mu.Unlock()
	return nil
}

func logger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...interface{}) { logger().Debugf(format, args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) { logger().Infof(format, args...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...interface{}) { logger().Warnf(format, args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) { logger().Errorf(format, args...) }

// Sync flushes any buffered log entries.
func Sync() {
	_ = logger().Sync()
}
