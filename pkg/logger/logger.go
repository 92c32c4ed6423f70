package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu          sync.RWMutex
	base        = zap.NewNop()
	serviceName = "terminal-core"
)

// Init builds the process-wide logger. format is "json" or "console".
func Init(level, format string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	base = z
	mu.Unlock()
	return nil
}

// Replace swaps the process logger, mostly for tests.
func Replace(z *zap.Logger) {
	mu.Lock()
	base = z
	mu.Unlock()
}

// SetServiceName sets the service field on every entry and returns the previous one.
func SetServiceName(newName string) string {
	mu.Lock()
	defer mu.Unlock()
	oldName := serviceName
	serviceName = newName
	return oldName
}

// Sync flushes buffered entries.
func Sync() {
	_ = current().Sync()
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With(zap.String("service", serviceName))
}

// Named returns a component logger that shares the process configuration.
// Its callers log directly, so the wrapper frame skip is undone.
func Named(component string) *zap.Logger {
	return current().WithOptions(zap.AddCallerSkip(-1)).Named(component)
}

func Debug(format string, args ...any) { current().Debug(fmt.Sprintf(format, args...)) }

func Info(format string, args ...any) { current().Info(fmt.Sprintf(format, args...)) }

func Warn(format string, args ...any) { current().Warn(fmt.Sprintf(format, args...)) }

func Error(format string, args ...any) { current().Error(fmt.Sprintf(format, args...)) }

func Fatal(format string, args ...any) { current().Fatal(fmt.Sprintf(format, args...)) }
