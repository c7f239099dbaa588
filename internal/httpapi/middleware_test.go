package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"roledash.org/internal/audit"
	"roledash.org/internal/obs"
	"roledash.org/internal/ratelimit"
)

func TestRequestIDPropagatesAndGenerates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = audit.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get(headerRequestID) != "abc-123" {
		t.Fatalf("expected propagated id, got ctx=%q header=%q", seen, rec.Header().Get(headerRequestID))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "abc-123" || rec.Header().Get(headerRequestID) != seen {
		t.Fatalf("expected generated id, got ctx=%q header=%q", seen, rec.Header().Get(headerRequestID))
	}
}

func TestRecoverReturns500(t *testing.T) {
	var buf bytes.Buffer
	obs.SetLogger(obs.NewJSONLogger(&buf))
	t.Cleanup(func() { obs.InitLogger(obs.LogConfig{}) })

	h := RequestID(Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != msgInternal || body["request_id"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}
	if !strings.Contains(buf.String(), "unhandled panic") || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestLoggingJSONWritesOneLine(t *testing.T) {
	var buf bytes.Buffer
	obs.SetLogger(obs.NewJSONLogger(&buf))
	t.Cleanup(func() { obs.InitLogger(obs.LogConfig{}) })

	trusted := []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")}
	h := RequestID(ClientIP(LoggingJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})), trusted))
	req := httptest.NewRequest(http.MethodGet, "/api/users/all", nil)
	req.Header.Set(headerRequestID, "rid-1")
	req.RemoteAddr = "192.0.2.1:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	want := map[string]any{
		"message":    "request_complete",
		"level":      "warn",
		"request_id": "rid-1",
		"method":     "GET",
		"path":       "/api/users/all",
		"status":     float64(403),
		"ip":         "203.0.113.9",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Fatalf("log field %s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Fatal("missing duration_ms")
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	h := CORS(next, []string{"https://app.example"})
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent || called {
		t.Fatalf("preflight should short-circuit with 204, got %d called=%v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("unexpected allow-origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Fatal("Authorization must be an allowed header")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" || !called {
		t.Fatal("unlisted origin must not be allowed but request must proceed")
	}
}

func TestCORSWildcard(t *testing.T) {
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), []string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anything.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Fatalf("missing %s", h)
		}
	}
}

func TestMaxBodyBytesRejectsLargeBody(t *testing.T) {
	h := MaxBodyBytes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]any
		if err := decodeJSON(r, &v); err != nil {
			badBody(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), 16)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"`+strings.Repeat("x", 64)+`"}`)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: true}, errors.New("redis down")
}

func TestRateLimitedFailsOpen(t *testing.T) {
	obs.SetLogger(obs.NewJSONLogger(&bytes.Buffer{}))
	t.Cleanup(func() { obs.InitLogger(obs.LogConfig{}) })

	a := &API{}
	h := a.rateLimited(failingLimiter{}, registerLimitMessage, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("limiter failure should let the request through, got %d", rec.Code)
	}
}

func TestRateLimitedKeysByClientIP(t *testing.T) {
	a := &API{}
	h := a.rateLimited(ratelimit.NewMemory(1, time.Minute), registerLimitMessage, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if send("198.51.100.1") != http.StatusCreated {
		t.Fatal("first request should pass")
	}
	if send("198.51.100.1") != http.StatusTooManyRequests {
		t.Fatal("second request from the same client should be limited")
	}
	if send("198.51.100.2") != http.StatusCreated {
		t.Fatal("other clients have their own budget")
	}
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.10/32"),
	}
	cases := []struct {
		name    string
		remote  string
		xff     string
		trusted []netip.Prefix
		want    string
	}{
		{"socket peer", "192.0.2.10:5555", "", trusted, "192.0.2.10"},
		{"no trusted proxies ignores header", "192.0.2.10:5555", "203.0.113.7", nil, "192.0.2.10"},
		{"untrusted peer ignores header", "198.51.100.4:5555", "203.0.113.7", trusted, "198.51.100.4"},
		{"trusted peer", "192.0.2.10:5555", " 203.0.113.7 ", trusted, "203.0.113.7"},
		{"forged leftmost hop", "192.0.2.10:5555", "1.2.3.4, 203.0.113.7, 10.1.2.3", trusted, "203.0.113.7"},
		{"all hops trusted", "192.0.2.10:5555", "10.0.0.5", trusted, "10.0.0.5"},
		{"garbage hop stops the walk", "192.0.2.10:5555", "203.0.113.7, not-an-ip", trusted, "192.0.2.10"},
		{"ipv6 peer", "[2001:db8::1]:443", "203.0.113.7", trusted, "2001:db8::1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := ClientIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = clientIP(r)
			}), tc.trusted)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tc.want {
				t.Fatalf("clientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClientIPWithoutMiddlewareUsesSocket(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := clientIP(req); got != "192.0.2.10" {
		t.Fatalf("clientIP = %q", got)
	}
}
