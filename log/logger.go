package log

import "context"

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields map[string]any

// Logger is the application logging interface used by the server wiring.
// Library packages log through the zerolog global instead.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)
	With(fields Fields) Logger
}
