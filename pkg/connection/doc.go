// Package connection manages one live-timing session against a hub.
//
// A Client walks through these states:
//
//	Disconnected -> Negotiating -> Subscribing -> Streaming
//	                     ^                           |
//	                     +------- Reconnecting <-----+
//
// Any state may move to Closed, which is terminal.
//
// Negotiating requests a connection token and dials the websocket,
// retrying with backoff up to Config.NegotiateAttempts. Subscribing sends
// the Subscribe invocation, applies the snapshots carried by its result
// and then confirms the transport with the start call. Streaming merges
// every feed envelope into the session state and dispatches the result.
//
// # Reconnection
//
// When the websocket fails or the hub stays silent past the keep-alive
// window, the client discards the session and starts over with a fresh
// negotiation. Delays grow exponentially:
//
//	1s, 2s, 4s, 8s, 16s, 32s, 60s, 60s, ...
//
// with up to 25% jitter added, and reset once a session is streaming
// again. Stop interrupts a pending delay.
//
// # Consumers
//
// Subscribe returns a bounded queue of merged results. A consumer that
// falls behind loses its oldest results; the feed never waits for it.
package connection
