// Package logging defines the structured-logging contract used across the
// backend. The production implementation wraps log/slog; tests use Discard.
package logging

import "context"

// Logger is a context-aware, structured logger. Variadic args are
// interpreted as key-value pairs:
//
//	log.Warn(ctx, "session cache unreachable", "op", "is_revoked")
type Logger interface {
	// Debug logs expected noise (token decode failures, anonymous requests).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs normal lifecycle events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs degraded but non-fatal conditions, such as cache outages
	// tolerated by the fail-open policy.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}
