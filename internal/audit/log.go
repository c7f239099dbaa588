package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// LogSink writes every event as one JSON line.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink builds a sink that writes JSON lines to all writers.
// Write errors are reported on stderr and otherwise ignored.
func NewLogSink(writers ...io.Writer) *LogSink {
	safe := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			safe = append(safe, failSafeWriter{w: w})
		}
	}
	var out io.Writer = io.Discard
	if len(safe) > 0 {
		out = zerolog.MultiLevelWriter(safe...)
	}
	return &LogSink{logger: zerolog.New(out).With().Str("type", "audit").Logger()}
}

// OpenLogFile opens path for appending, creating its directory when missing.
func OpenLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log file: %w", err)
	}
	return f, nil
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, event Event) {
	level, err := zerolog.ParseLevel(event.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	e := s.logger.WithLevel(level).
		Str("ts", occurred.UTC().Format(time.RFC3339Nano)).
		Str("event", event.Name)
	if rid := RequestIDFromContext(ctx); rid != "" {
		e = e.Str("request_id", rid)
	}
	e = optionalStr(e, "method", event.Method)
	e = optionalStr(e, "path", event.Path)
	e = optionalStr(e, "ip", event.ClientIP)
	e = optionalStr(e, "kind", event.Kind)
	e = optionalStr(e, "reason", event.Reason)
	e = optionalStr(e, "user_id", event.UserID)
	e = optionalStr(e, "user_role", event.UserRole)
	if event.RequiredRoles != nil {
		e = e.Strs("required_roles", event.RequiredRoles)
	}
	if len(event.Fields) > 0 {
		e = e.Fields(event.Fields)
	}
	e.Msg(event.Message)
}

func optionalStr(e *zerolog.Event, key, value string) *zerolog.Event {
	if value == "" {
		return e
	}
	return e.Str(key, value)
}

type failSafeWriter struct {
	w io.Writer
}

func (f failSafeWriter) Write(p []byte) (int, error) {
	if _, err := f.w.Write(p); err != nil {
		fmt.Fprintf(os.Stderr, "audit: write failed: %v\n", err)
	}
	return len(p), nil
}
