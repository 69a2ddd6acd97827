package log

import (
	"go.uber.org/zap"
)

// ZapLogger implements Logger on top of a zap.Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level LogLevel
}

var _ Logger = (*ZapLogger)(nil)

// NewZapLogger wraps logger. A nil logger is replaced by zap.NewNop().
func NewZapLogger(logger *zap.Logger, level LogLevel) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{
		sugar: logger.Sugar(),
		level: level,
	}
}

// Debug logs debug messages
func (l *ZapLogger) Debug(format string, v ...any) {
	if l.level <= LogLevelDebug {
		l.sugar.Debugf(format, v...)
	}
}

// Info logs informational messages
func (l *ZapLogger) Info(format string, v ...any) {
	if l.level <= LogLevelInfo {
		l.sugar.Infof(format, v...)
	}
}

// Warn logs warning messages
func (l *ZapLogger) Warn(format string, v ...any) {
	if l.level <= LogLevelWarn {
		l.sugar.Warnf(format, v...)
	}
}

// Error logs error messages
func (l *ZapLogger) Error(format string, v ...any) {
	if l.level <= LogLevelError {
		l.sugar.Errorf(format, v...)
	}
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
