package errors

import (
	"context"
)

// Tracker reports errors to an external service (Sentry in production).
type Tracker interface {
	// CaptureError sends an error with tags such as component, agent or workflow
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// AddBreadcrumb records a step (agent call, health transition) attached to later events
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush waits for pending events to be sent
	Flush(ctx context.Context) error
}

// Level is the severity of a tracked event
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}

type requestIDKey struct{}

// WithRequestID stores a workflow run id so trackers can tag reports with it
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id stored by WithRequestID
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
