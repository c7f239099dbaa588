// Package ratelimit bounds how often a client may hit an endpoint.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Memory is a per-key token bucket refilling limit tokens every window.
// It only limits within one process.
type Memory struct {
	limit  int
	window time.Duration
	idle   time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewMemory allows limit requests per window for each key.
func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{
		limit:   limit,
		window:  window,
		idle:    2 * window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(now)

	b, ok := m.buckets[key]
	if !ok {
		every := rate.Every(m.window / time.Duration(m.limit))
		b = &bucket{lim: rate.NewLimiter(every, m.limit)}
		m.buckets[key] = b
	}
	b.seen = now

	r := b.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, Limit: m.limit, RetryAfter: delay}, nil
	}
	remaining := int(b.lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: m.limit, Remaining: remaining}, nil
}

// prune drops buckets idle for longer than the refill period. Called with mu held.
func (m *Memory) prune(now time.Time) {
	if now.Sub(m.lastPrune) < m.window {
		return
	}
	m.lastPrune = now
	for k, b := range m.buckets {
		if now.Sub(b.seen) > m.idle {
			delete(m.buckets, k)
		}
	}
}
