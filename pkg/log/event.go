package log

import (
	"time"
)

// Event represents a feed capture event recorded at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the hub connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Source tells whether the event came from the live hub or a replay.
	Source Source `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the hub host.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Topic is the feed topic the event concerns, if any.
	Topic string `cbor:"8,keyasint,omitempty"`

	// MessageID is the hub message cursor ("C") of the frame.
	MessageID string `cbor:"9,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Envelope    *EnvelopeEvent    `cbor:"11,keyasint,omitempty"` // Feed layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Keep-alive, ping, negotiate
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
	Snapshot    *SnapshotEvent    `cbor:"15,keyasint,omitempty"` // Session state checkpoint
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message from the hub.
	DirectionIn Direction = 0
	// DirectionOut indicates a message to the hub.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the websocket layer (raw text frames).
	LayerTransport Layer = 0
	// LayerProtocol is the SignalR layer (negotiation, invocations).
	LayerProtocol Layer = 1
	// LayerFeed is the merged topic layer.
	LayerFeed Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerProtocol:
		return "PROTOCOL"
	case LayerFeed:
		return "FEED"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a frame or envelope.
	CategoryMessage Category = 0
	// CategoryControl indicates a control exchange (keep-alive, ping, start).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategorySnapshot indicates a session state checkpoint.
	CategorySnapshot Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategorySnapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// Source indicates where the feed data came from.
type Source uint8

const (
	// SourceLive is a live hub connection.
	SourceLive Source = 0
	// SourceArchive is a replay of an archived session.
	SourceArchive Source = 1
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceLive:
		return "LIVE"
	case SourceArchive:
		return "ARCHIVE"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// EnvelopeEvent captures one envelope after it was merged.
type EnvelopeEvent struct {
	// Kind distinguishes snapshots from updates.
	Kind EnvelopeKind `cbor:"1,keyasint"`

	// Payload is the envelope payload as received.
	Payload any `cbor:"2,keyasint,omitempty"`

	// Samples is the number of telemetry samples decoded.
	Samples int `cbor:"3,keyasint,omitempty"`

	// Partial marks an update that arrived before the topic's snapshot.
	Partial bool `cbor:"4,keyasint,omitempty"`

	// HubTime is the hub's timestamp for the envelope.
	HubTime *time.Time `cbor:"5,keyasint,omitempty"`
}

// EnvelopeKind distinguishes snapshot from update envelopes.
type EnvelopeKind uint8

const (
	// EnvelopeUpdate is a partial update.
	EnvelopeUpdate EnvelopeKind = 0
	// EnvelopeSnapshot is a full replacement.
	EnvelopeSnapshot EnvelopeKind = 1
)

// String returns the envelope kind name.
func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeUpdate:
		return "UPDATE"
	case EnvelopeSnapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySubscription indicates a topic subscription change.
	StateEntitySubscription StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures protocol control exchanges.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`

	// Detail is free text such as the negotiated token id or response.
	Detail string `cbor:"2,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgKeepAlive is an empty hub frame.
	ControlMsgKeepAlive ControlMsgType = 0
	// ControlMsgPing is a REST ping.
	ControlMsgPing ControlMsgType = 1
	// ControlMsgClose is a websocket close.
	ControlMsgClose ControlMsgType = 2
	// ControlMsgNegotiate is a negotiation exchange.
	ControlMsgNegotiate ControlMsgType = 3
	// ControlMsgSubscribe is a subscribe invocation or its result.
	ControlMsgSubscribe ControlMsgType = 4
	// ControlMsgStart is the transport start call.
	ControlMsgStart ControlMsgType = 5
	// ControlMsgAbort is the abort call.
	ControlMsgAbort ControlMsgType = 6
	// ControlMsgInit is the hub's init frame.
	ControlMsgInit ControlMsgType = 7
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgKeepAlive:
		return "KEEPALIVE"
	case ControlMsgPing:
		return "PING"
	case ControlMsgClose:
		return "CLOSE"
	case ControlMsgNegotiate:
		return "NEGOTIATE"
	case ControlMsgSubscribe:
		return "SUBSCRIBE"
	case ControlMsgStart:
		return "START"
	case ControlMsgAbort:
		return "ABORT"
	case ControlMsgInit:
		return "INIT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the HTTP or close code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// SnapshotEvent checkpoints the whole session state so a capture can be
// inspected from any point without replaying it from the start.
type SnapshotEvent struct {
	// Topics maps topic names to their merged value.
	Topics map[string]any `cbor:"1,keyasint"`

	// Envelopes is the number of envelopes applied since the previous
	// checkpoint.
	Envelopes int `cbor:"2,keyasint,omitempty"`
}
