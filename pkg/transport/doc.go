// Package transport provides the websocket layer of the hub connection.
//
// The transport layer handles:
//   - websocket dialing with the negotiate cookie jar
//   - text frame I/O with frame capture
//   - passive keep-alive (silence watchdog plus periodic REST ping)
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   SignalR JSON frames          │
//	├────────────────────────────────┤
//	│   WebSocket text frames        │
//	├────────────────────────────────┤
//	│   TLS 1.2+                     │
//	├────────────────────────────────┤
//	│   TCP                          │
//	└────────────────────────────────┘
//
// # Keep-Alive
//
// The hub sends an empty "{}" frame every 10-20 seconds. Any frame resets
// the silence window (default 30 seconds); when it elapses the connection
// is declared dead and the caller reconnects. Independently, the session
// is kept alive on the server by a REST ping every 5 minutes.
package transport
