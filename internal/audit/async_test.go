package audit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Record(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func TestAsyncSinkDeliversAndDrainsOnClose(t *testing.T) {
	rec := &recordingSink{}
	sink := NewAsyncSink(rec, 16)
	for _, name := range []string{"a", "b", "c"} {
		sink.Record(context.Background(), Event{Name: name})
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got := rec.names()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected delivered events: %v", got)
	}
	// Recording after close is a silent no-op.
	sink.Record(context.Background(), Event{Name: "late"})
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestAsyncSinkNeverBlocksWhenDownstreamStalls(t *testing.T) {
	release := make(chan struct{})
	stalled := SinkFunc(func(context.Context, Event) { <-release })
	sink := NewAsyncSink(stalled, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sink.Record(context.Background(), Event{Name: "flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a stalled sink")
	}
	close(release)
	_ = sink.Close()
}

func TestAsyncSinkKeepsValuesOfCancelledContext(t *testing.T) {
	var (
		mu  sync.Mutex
		rid string
	)
	next := SinkFunc(func(ctx context.Context, _ Event) {
		mu.Lock()
		rid = RequestIDFromContext(ctx)
		mu.Unlock()
	})
	sink := NewAsyncSink(next, 4)
	ctx, cancel := context.WithCancel(WithRequestID(context.Background(), "req-9"))
	cancel()
	sink.Record(ctx, Event{Name: "x"})
	_ = sink.Close()

	mu.Lock()
	defer mu.Unlock()
	if rid != "req-9" {
		t.Fatalf("expected request id to survive, got %q", rid)
	}
}

func TestMultiSinkSurvivesPanickingSink(t *testing.T) {
	rec := &recordingSink{}
	boom := SinkFunc(func(context.Context, Event) { panic("boom") })
	MultiSink{boom, rec}.Record(context.Background(), Event{Name: "ok"})
	if got := rec.names(); len(got) != 1 || got[0] != "ok" {
		t.Fatalf("expected second sink to receive event, got %v", got)
	}
}
