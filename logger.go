package verstats

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Logger defines an interface for logging operations.
// Implementations should be safe for concurrent use.
type Logger interface {
	// Info logs informational messages
	Info(ctx context.Context, format string, args ...interface{})

	// Warn logs warning messages
	Warn(ctx context.Context, format string, args ...interface{})

	// Error logs error messages
	Error(ctx context.Context, format string, args ...interface{})

	// Debug logs debug messages
	Debug(ctx context.Context, format string, args ...interface{})
}

// noopLogger is a Logger that does nothing.
type noopLogger struct{}

func (noopLogger) Info(ctx context.Context, format string, args ...interface{})  {}
func (noopLogger) Warn(ctx context.Context, format string, args ...interface{})  {}
func (noopLogger) Error(ctx context.Context, format string, args ...interface{}) {}
func (noopLogger) Debug(ctx context.Context, format string, args ...interface{}) {}

var defaultLogger Logger = noopLogger{}

// logrusLogger adapts a logrus logger or entry to Logger.
type logrusLogger struct {
	l logrus.FieldLogger
}

// NewLogrusLogger returns a Logger writing through l. A nil l uses logrus.StandardLogger().
func NewLogrusLogger(l logrus.FieldLogger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{l: l.WithField("component", "verstats")}
}

func (g *logrusLogger) entry(ctx context.Context) logrus.FieldLogger {
	if e, ok := g.l.(*logrus.Entry); ok && ctx != nil {
		return e.WithContext(ctx)
	}
	return g.l
}

func (g *logrusLogger) Info(ctx context.Context, format string, args ...interface{}) {
	g.entry(ctx).Infof(format, args...)
}

func (g *logrusLogger) Warn(ctx context.Context, format string, args ...interface{}) {
	g.entry(ctx).Warnf(format, args...)
}

func (g *logrusLogger) Error(ctx context.Context, format string, args ...interface{}) {
	g.entry(ctx).Errorf(format, args...)
}

func (g *logrusLogger) Debug(ctx context.Context, format string, args ...interface{}) {
	g.entry(ctx).Debugf(format, args...)
}
