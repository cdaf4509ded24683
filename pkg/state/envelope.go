package state

import (
	"time"

	"github.com/livetiming/lt-go/pkg/topic"
)

// Kind distinguishes full replacements from partial updates.
type Kind uint8

const (
	// Update envelopes are deep-merged into the topic's current value.
	Update Kind = iota
	// Snapshot envelopes replace the topic's value wholesale.
	Snapshot
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Update:
		return "UPDATE"
	case Snapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// Envelope is one unit of the feed: a payload for one topic.
type Envelope struct {
	Topic   topic.Topic
	Kind    Kind
	Payload Value

	// ReceivedAt is when the frame carrying the envelope arrived.
	ReceivedAt time.Time

	// HubTime is the hub's own timestamp for the envelope, zero if absent.
	HubTime time.Time
}

// Timestamp returns the hub time when known, otherwise the receive time.
func (e Envelope) Timestamp() time.Time {
	if !e.HubTime.IsZero() {
		return e.HubTime
	}
	return e.ReceivedAt
}
