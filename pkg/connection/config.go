package connection

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/livetiming/lt-go/pkg/dispatch"
	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/signalr"
	"github.com/livetiming/lt-go/pkg/topic"
	"github.com/livetiming/lt-go/pkg/transport"
)

// Connection defaults.
const (
	// DefaultNegotiateAttempts is the handshake retry budget.
	DefaultNegotiateAttempts = 5

	// DefaultSubscribeTimeout bounds the wait for the subscribe result.
	DefaultSubscribeTimeout = 30 * time.Second

	// DefaultRequestTimeout bounds each REST call.
	DefaultRequestTimeout = 30 * time.Second

	// abortTimeout bounds the abort call made by Stop.
	abortTimeout = 5 * time.Second
)

// Config configures a Client.
type Config struct {
	// URL is the hub base URL (default: signalr.DefaultURL).
	URL string

	// Hub is the hub name (default: signalr.DefaultHub).
	Hub string

	// Topics to subscribe to (default: topic.DefaultSubscription()).
	Topics []topic.Topic

	// NegotiateAttempts is the number of handshake attempts before
	// Connect fails with a NegotiationError (default: 5).
	NegotiateAttempts int

	// Backoff configures the delay between handshake attempts and
	// reconnections.
	Backoff BackoffConfig

	// KeepAliveTimeout is the maximum silence before the connection is
	// considered lost. Zero uses the hub's negotiated value.
	KeepAliveTimeout time.Duration

	// PingInterval is the REST ping period while streaming (default: 5m).
	// Negative disables pinging.
	PingInterval time.Duration

	// SubscribeTimeout bounds the wait for the subscribe result (default: 30s).
	SubscribeTimeout time.Duration

	// RequestTimeout bounds each REST call (default: 30s).
	RequestTimeout time.Duration

	// DispatchCapacity is the queue size for Subscribe(0)
	// (default: dispatch.DefaultCapacity).
	DispatchCapacity int

	// SkipTelemetry stores binary topics without decoding them.
	SkipTelemetry bool

	// TLS overrides certificate verification for the hub.
	TLS *transport.TLSConfig

	// UserAgent sent with every request (default: signalr.DefaultUserAgent).
	UserAgent string

	// Logger for operational messages. Nil disables logging.
	Logger *slog.Logger

	// Capture records protocol traffic. Nil disables capture.
	Capture log.Logger

	// SnapshotPolicy controls session checkpoints in the capture.
	SnapshotPolicy SnapshotPolicy

	// OnDrop is called when a consumer's oldest event is overwritten.
	OnDrop func(dispatch.DropEvent)
}

// DefaultConfig returns a configuration for the public hub.
func DefaultConfig() Config {
	return Config{
		URL:               signalr.DefaultURL,
		Hub:               signalr.DefaultHub,
		Topics:            topic.DefaultSubscription(),
		NegotiateAttempts: DefaultNegotiateAttempts,
		Backoff:           DefaultBackoffConfig(),
		PingInterval:      transport.DefaultPingInterval,
		SubscribeTimeout:  DefaultSubscribeTimeout,
		RequestTimeout:    DefaultRequestTimeout,
		DispatchCapacity:  dispatch.DefaultCapacity,
		UserAgent:         signalr.DefaultUserAgent,
		SnapshotPolicy:    DefaultSnapshotPolicy(),
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.URL == "" {
		c.URL = def.URL
	}
	if c.Hub == "" {
		c.Hub = def.Hub
	}
	if len(c.Topics) == 0 {
		c.Topics = def.Topics
	}
	if c.NegotiateAttempts <= 0 {
		c.NegotiateAttempts = def.NegotiateAttempts
	}
	if c.PingInterval == 0 {
		c.PingInterval = def.PingInterval
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = def.SubscribeTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.DispatchCapacity <= 0 {
		c.DispatchCapacity = def.DispatchCapacity
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	if c.SnapshotPolicy == (SnapshotPolicy{}) {
		c.SnapshotPolicy = def.SnapshotPolicy
	}
	return c
}

// Validate checks the topic list.
func (c Config) Validate() error {
	seen := make(map[topic.Topic]bool, len(c.Topics))
	for _, t := range c.Topics {
		if !t.Known() {
			return fmt.Errorf("%w: %s", topic.ErrUnknownTopic, t)
		}
		if seen[t] {
			return fmt.Errorf("duplicate topic %s", t)
		}
		seen[t] = true
	}
	return nil
}
