package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger used by every pipeline component
var Logger *zap.Logger

var (
	fallbackOnce sync.Once
	fallback     *zap.Logger
)

// Init builds the global logger. Production runs emit JSON at info level,
// everything else gets colored console output at debug level. A non-empty
// level overrides the default for either mode.
func Init(production bool, level string) error {
	var config zap.Config

	if production {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(parsed)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := config.Build()
	if err != nil {
		return err
	}
	Logger = built
	return nil
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Get returns the global logger, or a shared development logger when Init
// has not run (tests, library use).
func Get() *zap.Logger {
	if Logger != nil {
		return Logger
	}
	fallbackOnce.Do(func() {
		fallback, _ = zap.NewDevelopment()
	})
	return fallback
}

// With returns the global logger scoped to a pipeline component
func With(component string) *zap.Logger {
	return Get().Named(component)
}
