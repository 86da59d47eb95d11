package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success", AccountID: "acc-1"})
	}
	d.Close()

	if got := sink.len(); got != 5 {
		t.Fatalf("delivered = %d, want 5", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("dropped = %d, want 0", d.Dropped())
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &recordingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}

	// The nil receiver is part of the contract.
	d.Emit(context.Background(), Event{EventType: "login_success"})
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
	d.Close()
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &blockingSink{release: block}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the worker, second fills the buffer, the
	// rest must be dropped rather than block.
	for i := 0; i < 8; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops under backpressure")
	}

	close(block)
	d.Close()
}

type blockingSink struct {
	release <-chan struct{}
	once    sync.Once
}

func (s *blockingSink) Emit(context.Context, Event) {
	s.once.Do(func() { <-s.release })
}

func TestEmitAfterCloseIsDiscarded(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success"})
	if got := sink.len(); got != 0 {
		t.Fatalf("delivered after close = %d, want 0", got)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(2)
	sink.Emit(context.Background(), Event{EventType: "logout_session"})

	select {
	case event := <-sink.Events():
		if event.EventType != "logout_session" {
			t.Fatalf("event type = %q", event.EventType)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestJSONWriterSinkOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "login_success", AccountID: "acc-1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first.EventType != "login_success" || !first.Success {
		t.Fatalf("first event = %+v", first)
	}
}
