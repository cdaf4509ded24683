package transport

import (
	"context"
	"net"
)

// FrameConn is a bidirectional text-frame connection.
// Implemented by Conn.
type FrameConn interface {
	// ReadMessage blocks for the next frame.
	ReadMessage() ([]byte, error)

	// WriteMessage sends a frame.
	WriteMessage(data []byte) error

	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr

	// Close closes the connection.
	Close() error
}

// FrameDialer opens FrameConns.
// Implemented by Dialer.
type FrameDialer interface {
	// Dial connects to a websocket URL.
	Dial(ctx context.Context, rawURL string) (*Conn, error)
}

// Compile-time interface satisfaction checks.
var (
	_ FrameConn   = (*Conn)(nil)
	_ FrameDialer = (*Dialer)(nil)
)
