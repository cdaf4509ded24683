package connection

import (
	"context"

	"github.com/livetiming/lt-go/pkg/signalr"
	"github.com/livetiming/lt-go/pkg/transport"
)

// Hub performs the REST side of the protocol.
// Implemented by *signalr.REST.
type Hub interface {
	// Negotiate requests a connection token.
	Negotiate(ctx context.Context) (signalr.NegotiateResponse, error)

	// Start confirms the websocket transport.
	Start(ctx context.Context, token string) error

	// Ping keeps the server session alive.
	Ping(ctx context.Context) error

	// Abort ends the server session.
	Abort(ctx context.Context, token string) error
}

// Dialer opens the websocket.
type Dialer interface {
	// Dial connects to a websocket URL.
	Dial(ctx context.Context, rawURL string) (transport.FrameConn, error)
}

// wsDialer adapts transport.Dialer to Dialer.
type wsDialer struct {
	d *transport.Dialer
}

func (w wsDialer) Dial(ctx context.Context, rawURL string) (transport.FrameConn, error) {
	conn, err := w.d.Dial(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Compile-time interface satisfaction checks.
var (
	_ Hub    = (*signalr.REST)(nil)
	_ Dialer = wsDialer{}
)
