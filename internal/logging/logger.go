// Package logging is the structured logger shared by the QuoteKeeper client
// and the record server. Components receive a Logger, tag it with their
// module name and log key/value pairs through log/slog.
package logging

import "context"

// ModuleKey is the attribute naming the component a log line came from.
const ModuleKey = "module"

// Logger is a context-aware, structured logger. Args are key/value pairs:
//
//	log.Info(ctx, "sync finished", "entity", "quotes", "uploaded", 3)
type Logger interface {
	// Debug is for per-record merge decisions and similar noise.
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn marks conditions the caller recovers from, like a skipped record.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
}

// Module returns l tagged with the component name, e.g. "sync" or "repair".
func Module(l Logger, name string) Logger {
	return l.With(ModuleKey, name)
}
