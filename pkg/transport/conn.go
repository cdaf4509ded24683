package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livetiming/lt-go/pkg/log"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
)

// closeGrace is how long Close waits for the close frame write.
const closeGrace = time.Second

// Conn is a websocket connection carrying text frames.
// One goroutine may read while others write.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	closeOnce sync.Once
	closeCh   chan struct{}
	writeMu   sync.Mutex

	// Capture support (optional)
	mu     sync.RWMutex
	logger log.Logger
	connID string
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		ws:           ws,
		writeTimeout: writeTimeout,
		closeCh:      make(chan struct{}),
	}
}

// SetLogger configures frame capture for this connection.
// Pass nil to disable.
func (c *Conn) SetLogger(logger log.Logger, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
	c.connID = connID
}

// ConnID returns the capture connection identifier.
func (c *Conn) ConnID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connID
}

// RemoteAddr returns the hub address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// Done is closed once the connection is closed locally.
func (c *Conn) Done() <-chan struct{} {
	return c.closeCh
}

// ReadMessage blocks for the next text frame. Binary frames are skipped;
// the hub never sends them.
func (c *Conn) ReadMessage() ([]byte, error) {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
				return nil, ErrConnectionClosed
			default:
			}
			return nil, err
		}
		if typ != websocket.TextMessage {
			continue
		}
		c.capture(log.DirectionIn, data)
		return data, nil
	}
}

// WriteMessage sends a text frame.
func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer c.ws.SetWriteDeadline(time.Time{})
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.capture(log.DirectionOut, data)
	return nil
}

// Close sends a normal close frame and closes the socket. A blocked
// ReadMessage returns ErrConnectionClosed. Safe to call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)

		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.writeMu.Unlock()

		err = c.ws.Close()
		c.captureClose()
	})
	return err
}

// IsClosed reports whether Close was called.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

// IsNormalClose reports whether err is a clean websocket close from the hub.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (c *Conn) capture(dir log.Direction, data []byte) {
	c.mu.RLock()
	logger, connID := c.logger, c.connID
	c.mu.RUnlock()
	if logger == nil {
		return
	}
	event := log.NewFrameEvent(connID, dir, data, time.Now())
	event.RemoteAddr = c.ws.RemoteAddr().String()
	logger.Log(event)
}

func (c *Conn) captureClose() {
	c.mu.RLock()
	logger, connID := c.logger, c.connID
	c.mu.RUnlock()
	if logger == nil {
		return
	}
	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		ControlMsg:   &log.ControlMsgEvent{Type: log.ControlMsgClose},
	})
}
