package connection

// State represents the feed connection state.
type State uint8

const (
	// StateDisconnected indicates no session has been established yet.
	StateDisconnected State = iota

	// StateNegotiating indicates the token request and websocket dial.
	StateNegotiating

	// StateSubscribing indicates the subscribe call is awaiting its result.
	StateSubscribing

	// StateStreaming indicates frames are being read and merged.
	StateStreaming

	// StateReconnecting indicates a backoff wait after a lost connection.
	StateReconnecting

	// StateClosed is terminal.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateSubscribing:
		return "SUBSCRIBING"
	case StateStreaming:
		return "STREAMING"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// canTransition reports whether from -> to is a legal move.
func canTransition(from, to State) bool {
	if from == StateClosed {
		return false
	}
	if to == StateClosed {
		return true
	}
	switch from {
	case StateDisconnected:
		return to == StateNegotiating
	case StateNegotiating:
		return to == StateSubscribing || to == StateDisconnected || to == StateReconnecting
	case StateSubscribing:
		return to == StateStreaming || to == StateDisconnected || to == StateReconnecting
	case StateStreaming:
		return to == StateReconnecting
	case StateReconnecting:
		return to == StateNegotiating
	}
	return false
}
