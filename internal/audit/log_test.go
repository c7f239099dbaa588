package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogSinkWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(&buf)

	ctx := WithRequestID(context.Background(), "req-123")
	sink.Record(ctx, Event{
		Name:          "auth.authorize.rejected",
		Level:         LevelWarn,
		Message:       "403 Forbidden - Insufficient permissions",
		Method:        "GET",
		Path:          "/api/users/all",
		ClientIP:      "10.0.0.1",
		Kind:          "insufficient_role",
		UserID:        "user-42",
		UserRole:      "editor",
		RequiredRoles: []string{"admin"},
		Fields:        map[string]any{"foo": "bar"},
	})

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log output")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	want := map[string]any{
		"type":       "audit",
		"level":      "warn",
		"event":      "auth.authorize.rejected",
		"request_id": "req-123",
		"method":     "GET",
		"path":       "/api/users/all",
		"ip":         "10.0.0.1",
		"kind":       "insufficient_role",
		"user_id":    "user-42",
		"user_role":  "editor",
		"foo":        "bar",
		"message":    "403 Forbidden - Insufficient permissions",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Fatalf("entry[%q]=%v, want %v (entry %v)", k, entry[k], v, entry)
		}
	}
	roles, ok := entry["required_roles"].([]any)
	if !ok || len(roles) != 1 || roles[0] != "admin" {
		t.Fatalf("unexpected required_roles: %v", entry["required_roles"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts in entry")
	}
}

func TestLogSinkOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	NewLogSink(&buf).Record(context.Background(), Event{Name: "auth.login.succeeded"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, k := range []string{"request_id", "method", "user_role", "required_roles"} {
		if _, ok := entry[k]; ok {
			t.Fatalf("did not expect %q in %v", k, entry)
		}
	}
	if entry["level"] != "info" {
		t.Fatalf("expected default info level, got %v", entry["level"])
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLogSinkSwallowsWriteErrors(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(brokenWriter{}, &buf)
	sink.Record(context.Background(), Event{Name: "auth.authenticate.rejected"})
	if !strings.Contains(buf.String(), "auth.authenticate.rejected") {
		t.Fatalf("healthy writer should still receive the event, got %q", buf.String())
	}
}

func TestOpenLogFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	f, err := OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	NewLogSink(f).Record(context.Background(), Event{Name: "file.test"})
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"event":"file.test"`) {
		t.Fatalf("unexpected file content %q", data)
	}
}
