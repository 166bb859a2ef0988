package walletpnl

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger abstracts logging behaviour used across the project.
type Logger interface {
	Printf(format string, args ...any)
}

var (
	baseLoggerOnce sync.Once
	baseLogger     *zap.Logger
)

// NewLogger returns a logger that writes timestamped entries named after tag.
func NewLogger(tag string) Logger {
	return &zapLogger{sugar: rootLogger().Named(tag).Sugar()}
}

// NewDiscardLogger returns a logger that drops all log entries (useful in tests).
func NewDiscardLogger() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// Printf logs at info level, or at warn level when the message names itself
// a warning.
func (l *zapLogger) Printf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	if strings.Contains(format, "warning") {
		l.sugar.Warnf(format, args...)
		return
	}
	l.sugar.Infof(format, args...)
}

func rootLogger() *zap.Logger {
	baseLoggerOnce.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000")
		cfg.Level = zap.NewAtomicLevelAt(parseLogLevel(os.Getenv(LogLevelEnv)))

		logger, err := cfg.Build()
		if err != nil {
			logger = zap.NewNop()
		}
		baseLogger = logger
	})
	return baseLogger
}

func parseLogLevel(value string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.TrimSpace(value))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
