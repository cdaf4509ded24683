package log

import (
	"sync"
	"testing"
	"time"
)

// recordingLogger records events for testing.
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLogger) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	rec1, rec2 := &recordingLogger{}, &recordingLogger{}
	multi := NewMultiLogger(rec1, nil, rec2)

	if multi.Len() != 2 {
		t.Fatalf("Len: got %d, want 2 (nil skipped)", multi.Len())
	}

	multi.Log(Event{Timestamp: time.Now(), ConnectionID: "conn-123"})

	for i, rec := range []*recordingLogger{rec1, rec2} {
		events := rec.Events()
		if len(events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(events))
			continue
		}
		if events[0].ConnectionID != "conn-123" {
			t.Errorf("logger %d: ConnectionID %q", i, events[0].ConnectionID)
		}
	}
}

func TestMultiLoggerEmptyList(t *testing.T) {
	multi := NewMultiLogger()
	multi.Log(Event{Timestamp: time.Now()})
	if multi.Len() != 0 {
		t.Errorf("Len: got %d, want 0", multi.Len())
	}
}
