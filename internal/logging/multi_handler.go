package logging

import (
	"context"
	"log/slog"
)

// teeHandler duplicates each record to every target handler that accepts
// its level. Targets filter independently, so stdout and the journal can
// run at different verbosities.
type teeHandler struct {
	targets []slog.Handler
}

func tee(targets ...slog.Handler) slog.Handler {
	return &teeHandler{targets: targets}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.targets {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range t.targets {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	targets := make([]slog.Handler, len(t.targets))
	for i, h := range t.targets {
		targets[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{targets: targets}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	targets := make([]slog.Handler, len(t.targets))
	for i, h := range t.targets {
		targets[i] = h.WithGroup(name)
	}
	return &teeHandler{targets: targets}
}
