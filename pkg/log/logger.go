package log

import (
	"time"

	"github.com/google/uuid"
)

// Logger receives feed capture events.
// Pass nil or NoopLogger to disable capture.
type Logger interface {
	// Log records an event. Implementations must be thread-safe and must
	// not block; Log is called from the feed read loop.
	Log(event Event)
}

// NoopLogger discards all events. Use when capture is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}

// NewConnectionID returns a fresh connection identifier.
func NewConnectionID() string {
	return uuid.NewString()
}

// MaxFrameDataSize is the maximum frame data kept in a FrameEvent (4 KB).
// Larger frames are truncated in capture events.
const MaxFrameDataSize = 4096

// NewFrameEvent builds a transport-layer frame event, truncating data.
func NewFrameEvent(connID string, dir Direction, data []byte, now time.Time) Event {
	frame := &FrameEvent{Size: len(data)}
	if len(data) > MaxFrameDataSize {
		frame.Data = append([]byte(nil), data[:MaxFrameDataSize]...)
		frame.Truncated = true
	} else {
		frame.Data = append([]byte(nil), data...)
	}
	return Event{
		Timestamp:    now,
		ConnectionID: connID,
		Direction:    dir,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame:        frame,
	}
}
