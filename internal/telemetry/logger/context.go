package logger

import "context"

type contextKey string

const (
	loggerKey contextKey = "cfsm.logger"
	opIDKey   contextKey = "cfsm.op_id"
	jobKey    contextKey = "cfsm.job"
)

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from a context, falling back to Default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithOpID tags a context with an operation identifier.
func WithOpID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opIDKey, id)
}

// WithJob tags a context with the scheduler job name driving the operation.
func WithJob(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, jobKey, name)
}

// L returns the context logger enriched with the operation and job tags.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if id, ok := ctx.Value(opIDKey).(string); ok && id != "" {
		l = l.With("op_id", id)
	}
	if job, ok := ctx.Value(jobKey).(string); ok && job != "" {
		l = l.With("job", job)
	}
	return l
}
