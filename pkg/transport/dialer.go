package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livetiming/lt-go/pkg/log"
)

// Dial defaults.
const (
	// DefaultHandshakeTimeout bounds the websocket upgrade.
	DefaultHandshakeTimeout = 30 * time.Second

	// DefaultMaxMessageSize is the default maximum frame size (8 MB).
	// Subscription results carry every topic snapshot in one frame.
	DefaultMaxMessageSize = 8 << 20

	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second
)

// ErrHandshake indicates the hub refused the websocket upgrade.
var ErrHandshake = errors.New("websocket handshake failed")

// HandshakeError carries the HTTP status of a refused upgrade.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: status %d: %v", ErrHandshake, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%v: %v", ErrHandshake, e.Err)
}

func (e *HandshakeError) Unwrap() []error {
	return []error{ErrHandshake, e.Err}
}

// DialerConfig configures a Dialer.
type DialerConfig struct {
	// TLSConfig contains TLS settings (nil = system defaults).
	TLSConfig *TLSConfig

	// Jar holds the cookies the negotiate step received. The hub routes the
	// websocket by its load-balancer cookie, so the same jar must be shared
	// with the REST client.
	Jar http.CookieJar

	// Header is sent with the upgrade request.
	Header http.Header

	// HandshakeTimeout bounds the upgrade (default: 30s).
	HandshakeTimeout time.Duration

	// MaxMessageSize is the maximum accepted frame size (default: 8MB).
	MaxMessageSize int64

	// WriteTimeout bounds frame writes (default: 10s).
	WriteTimeout time.Duration

	// Logger captures frames (optional).
	Logger log.Logger
}

// Dialer opens websocket connections to the hub.
type Dialer struct {
	config DialerConfig
	ws     *websocket.Dialer
}

// NewDialer creates a Dialer. A missing cookie jar is created.
func NewDialer(config DialerConfig) (*Dialer, error) {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		config.Jar = jar
	}

	return &Dialer{
		config: config,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			TLSClientConfig:  NewClientTLSConfig(config.TLSConfig),
			Jar:              config.Jar,
		},
	}, nil
}

// Jar returns the cookie jar shared with the REST client.
func (d *Dialer) Jar() http.CookieJar {
	return d.config.Jar
}

// Dial connects to a ws:// or wss:// URL.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (*Conn, error) {
	ws, resp, err := d.ws.DialContext(ctx, rawURL, d.config.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		herr := &HandshakeError{Err: err}
		if resp != nil {
			herr.StatusCode = resp.StatusCode
		}
		return nil, herr
	}

	ws.SetReadLimit(d.config.MaxMessageSize)

	conn := newConn(ws, d.config.WriteTimeout)
	if d.config.Logger != nil {
		conn.SetLogger(d.config.Logger, log.NewConnectionID())
	}
	return conn, nil
}
