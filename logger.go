package orderflow

import (
	"go.uber.org/zap"
)

// Logger is a minimal structured logging interface. Key-value pairs follow
// the message as alternating keys and values.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// NopLogger returns a Logger that discards all output.
func NopLogger() Logger {
	return nopLogger{}
}

// ZapLogger adapts a zap.Logger to the Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps a zap.Logger for use as an event store or middleware logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar()}
}

// Debug logs at debug level.
func (z *ZapLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.sugar.Debugw(msg, keysAndValues...)
}

// Info logs at info level.
func (z *ZapLogger) Info(msg string, keysAndValues ...interface{}) {
	z.sugar.Infow(msg, keysAndValues...)
}

// Warn logs at warn level.
func (z *ZapLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.sugar.Warnw(msg, keysAndValues...)
}

// Error logs at error level.
func (z *ZapLogger) Error(msg string, keysAndValues ...interface{}) {
	z.sugar.Errorw(msg, keysAndValues...)
}

var _ Logger = (*ZapLogger)(nil)
var _ Logger = nopLogger{}
