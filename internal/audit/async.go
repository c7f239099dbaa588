package audit

import (
	"context"
	"fmt"
	"os"
	"sync"

	"roledash.org/internal/obs"
)

const defaultQueueSize = 1024

type queued struct {
	ctx   context.Context
	event Event
}

// AsyncSink hands events to a background worker. Record never blocks: when the
// queue is full the event is dropped and counted.
type AsyncSink struct {
	next  Sink
	queue chan queued

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts the worker that forwards events to next.
func NewAsyncSink(next Sink, size int) *AsyncSink {
	if size <= 0 {
		size = defaultQueueSize
	}
	s := &AsyncSink{
		next:  next,
		queue: make(chan queued, size),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Record implements Sink.
func (s *AsyncSink) Record(ctx context.Context, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		obs.RecordAuditDropped()
		return
	}
	// The request context is cancelled once the handler returns; keep only its values.
	select {
	case s.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		obs.RecordAuditDropped()
	}
}

// Close stops accepting events and waits until the queue is drained.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for item := range s.queue {
		safeRecord(s.next, item.ctx, item.event)
	}
}

// MultiSink fans an event out to every sink; a failing sink does not stop the others.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(ctx context.Context, event Event) {
	for _, s := range m {
		safeRecord(s, ctx, event)
	}
}

func safeRecord(s Sink, ctx context.Context, event Event) {
	if s == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "audit: sink panicked on %s: %v\n", event.Name, r)
		}
	}()
	s.Record(ctx, event)
}
