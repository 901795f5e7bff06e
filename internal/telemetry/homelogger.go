// Package telemetry adapts the gateway's slog logger to the small,
// three-method logging interface callhome expects.
package telemetry

import "log/slog"

// HomeLogger adapts a *slog.Logger to the Info/Warn/Error(string) shape
// callhome's client wants.
type HomeLogger struct {
	l *slog.Logger
}

// NewHomeLogger wraps l.
func NewHomeLogger(l *slog.Logger) *HomeLogger {
	return &HomeLogger{l: l}
}

func (h *HomeLogger) Info(msg string)  { h.l.Info(msg) }
func (h *HomeLogger) Warn(msg string)  { h.l.Warn(msg) }
func (h *HomeLogger) Error(msg string) { h.l.Error(msg) }
