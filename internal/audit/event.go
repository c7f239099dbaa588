package audit

import (
	"context"
	"strings"
	"time"
)

// Levels used by audit events. They match zerolog level names.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event is a best-effort record of an access decision or a security relevant action.
type Event struct {
	Name          string
	Level         string
	Message       string
	Method        string
	Path          string
	ClientIP      string
	Kind          string
	Reason        string
	UserID        string
	UserRole      string
	RequiredRoles []string
	Fields        map[string]any
	OccurredAt    time.Time
}

// Sink consumes audit events. Implementations must not block the caller for long
// and must swallow their own failures.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Record(ctx context.Context, event Event) { f(ctx, event) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
