package metrics

import (
	"fmt"
	"log/slog"
)

// Logger receives diagnostics for the soft failures the engine otherwise
// keeps silent (invalid names, variant-mismatched duplicate registrations).
// The default logger discards everything.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

func newNoopLogger() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// NewSlogLogger adapts a *slog.Logger to the Logger interface.
func NewSlogLogger(l *slog.Logger) Logger { return slogLogger{l: l} }

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debugf(format string, args ...any) { s.l.Debug(fmt.Sprintf(format, args...)) }
func (s slogLogger) Infof(format string, args ...any)  { s.l.Info(fmt.Sprintf(format, args...)) }
func (s slogLogger) Warnf(format string, args ...any)  { s.l.Warn(fmt.Sprintf(format, args...)) }
func (s slogLogger) Errorf(format string, args ...any) { s.l.Error(fmt.Sprintf(format, args...)) }
