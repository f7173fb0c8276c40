package logging

import (
	"context"
	"log/slog"
	"time"
)

// Standardized attribute keys shared across components.
const (
	FieldComponent = "component"
	FieldCaseID    = "case_id"
	FieldRunID     = "run_id"
	FieldErrorKind = "error_kind"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(NopHandler{})
}

// WithComponent attaches a standardized component attribute. A nil base
// logger yields a no-op logger.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// NopHandler discards all log output.
type NopHandler struct{}

func (NopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NopHandler) WithAttrs([]slog.Attr) slog.Handler { return NopHandler{} }

func (NopHandler) WithGroup(string) slog.Handler { return NopHandler{} }
