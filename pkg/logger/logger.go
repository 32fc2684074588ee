package logger

import (
	"context"
	"log/slog"
	"os"
)

// New returns a JSON structured logger. local and dev run at debug level.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", "holdline")
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if v := ctx.Value(ctxKey{}); v != nil {
			if l, ok := v.(*slog.Logger); ok && l != nil {
				return l
			}
		}
	}
	return slog.Default()
}

// ForCall returns the context logger scoped to one call.
func ForCall(ctx context.Context, callID string) *slog.Logger {
	return From(ctx).With("call_id", callID)
}
