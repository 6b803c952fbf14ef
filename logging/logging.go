// Package logging defines the small leveled logging contract shared by the
// retry runners, the service manager and the cron scheduler, along with an
// adapter for [zap.Logger].
//
// The contract mirrors syslog-style severities. zap has no notice or
// emergency level, so those are written at info and error level respectively
// with a "severity" field set, which keeps them filterable downstream.
package logging

import (
	"go.uber.org/zap"
)

// logger fields
const (
	JobID    = "job_id"
	Elapsed  = "elapsed"
	Retries  = "retries"
	Wait     = "wait"
	Attempt  = "attempt"
	Signal   = "signal"
	Name     = "name"
	Severity = "severity"
)

// severities without a zap level of their own
const (
	SeverityNotice    = "notice"
	SeverityEmergency = "emergency"
)

// Logger is the minimal leveled logger the library writes to.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Notice(msg string, fields ...zap.Field)
	Warning(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Emergency(msg string, fields ...zap.Field)
	// With returns a Logger that adds fields to every entry.
	With(fields ...zap.Field) Logger
}

// New adapts a *zap.Logger. A nil logger is treated as zap.NewNop().
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return New(zap.NewNop())
}

// OrNop returns l, or a Nop logger if l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

type zapLogger struct {
	l *zap.Logger
}

func (z *zapLogger) Debug(msg string, fields ...zap.Field) {
	z.l.Debug(msg, fields...)
}

func (z *zapLogger) Info(msg string, fields ...zap.Field) {
	z.l.Info(msg, fields...)
}

func (z *zapLogger) Notice(msg string, fields ...zap.Field) {
	z.l.Info(msg, append(fields, zap.String(Severity, SeverityNotice))...)
}

func (z *zapLogger) Warning(msg string, fields ...zap.Field) {
	z.l.Warn(msg, fields...)
}

func (z *zapLogger) Error(msg string, fields ...zap.Field) {
	z.l.Error(msg, fields...)
}

func (z *zapLogger) Emergency(msg string, fields ...zap.Field) {
	z.l.Error(msg, append(fields, zap.String(Severity, SeverityEmergency))...)
}

func (z *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

// Zap returns the underlying *zap.Logger of a Logger created by [New], or
// zap.NewNop() for any other implementation.
func Zap(l Logger) *zap.Logger {
	if z, ok := l.(*zapLogger); ok {
		return z.l
	}
	return zap.NewNop()
}
