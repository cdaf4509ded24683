package connection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/livetiming/lt-go/pkg/topic"
)

// Connection errors.
var (
	ErrClosed             = errors.New("client closed")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrAlreadyRunning     = errors.New("run already in progress")
	ErrNegotiationFailed  = errors.New("negotiation failed")
	ErrSubscriptionFailed = errors.New("subscription rejected")
	ErrConnectionLost     = errors.New("connection lost")
	ErrKeepAliveTimeout   = errors.New("keep-alive timeout")
	ErrSubscribeTimeout   = errors.New("subscribe result timeout")
	errStopped            = errors.New("stopped")
)

// NegotiationError reports that no session could be established within
// the retry budget, or that the hub refused in a way retrying cannot fix.
type NegotiationError struct {
	Attempts int
	Err      error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", ErrNegotiationFailed, e.Attempts, e.Err)
}

func (e *NegotiationError) Unwrap() []error {
	return []error{ErrNegotiationFailed, e.Err}
}

// SubscriptionError reports that the hub rejected the topic list.
type SubscriptionError struct {
	Topics  []topic.Topic
	Message string
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("%v (%s): %s", ErrSubscriptionFailed, strings.Join(topic.Names(e.Topics), ","), e.Message)
}

func (e *SubscriptionError) Unwrap() error {
	return ErrSubscriptionFailed
}

// ConnectionLostError reports an I/O failure or keep-alive timeout on an
// established connection. The client recovers by reconnecting.
type ConnectionLostError struct {
	State State
	Err   error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("%v while %s: %v", ErrConnectionLost, e.State, e.Err)
}

func (e *ConnectionLostError) Unwrap() []error {
	return []error{ErrConnectionLost, e.Err}
}

// terminal reports whether err ends Run instead of triggering a reconnect.
func terminal(err error) bool {
	var nerr *NegotiationError
	var serr *SubscriptionError
	return errors.As(err, &nerr) || errors.As(err, &serr)
}
