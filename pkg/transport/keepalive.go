package transport

import (
	"context"
	"sync"
	"time"
)

// Keep-alive constants.
const (
	// DefaultSilenceTimeout is how long the hub may stay silent before the
	// connection is considered dead. The hub sends "{}" every 10-20s.
	DefaultSilenceTimeout = 30 * time.Second

	// DefaultPingInterval is the interval between REST pings.
	DefaultPingInterval = 5 * time.Minute

	// minCheckInterval bounds how often silence is checked.
	minCheckInterval = 10 * time.Millisecond
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// SilenceTimeout is the maximum gap between received frames.
	SilenceTimeout time.Duration

	// PingInterval is the interval between pings. Zero disables pinging.
	PingInterval time.Duration
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		SilenceTimeout: DefaultSilenceTimeout,
		PingInterval:   DefaultPingInterval,
	}
}

// checkInterval is the silence polling period.
func (c KeepAliveConfig) checkInterval() time.Duration {
	return max(c.SilenceTimeout/4, minCheckInterval)
}

// KeepAlive watches a passive connection. The hub pushes frames on its own;
// the client only records activity with Touch and, separately, pings the
// REST endpoint to keep the server-side session alive.
type KeepAlive struct {
	config KeepAliveConfig

	// Callbacks
	ping      func(ctx context.Context) error
	onTimeout func()

	// State
	lastSeen     time.Time
	lastPingTime time.Time
	pings        int
	pingFailures int
	timedOut     bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewKeepAlive creates a new keep-alive watchdog. ping may be nil.
func NewKeepAlive(config KeepAliveConfig, ping func(ctx context.Context) error, onTimeout func()) *KeepAlive {
	if config.SilenceTimeout == 0 {
		config.SilenceTimeout = DefaultSilenceTimeout
	}

	return &KeepAlive{
		config:    config,
		ping:      ping,
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins monitoring. The silence window starts now.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	if ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.timedOut = false
	ka.lastSeen = time.Now()
	ka.stopCh = make(chan struct{})
	ka.doneCh = make(chan struct{})
	ka.mu.Unlock()

	go ka.loop(ctx)
}

// Stop stops monitoring and waits for the loop to exit.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	if !ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = false
	close(ka.stopCh)
	done := ka.doneCh
	ka.mu.Unlock()

	<-done
}

// Touch records inbound activity.
func (ka *KeepAlive) Touch() {
	ka.mu.Lock()
	ka.lastSeen = time.Now()
	ka.mu.Unlock()
}

// IsRunning returns true if keep-alive monitoring is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return KeepAliveStats{
		LastSeen:     ka.lastSeen,
		LastPingTime: ka.lastPingTime,
		Pings:        ka.pings,
		PingFailures: ka.pingFailures,
		TimedOut:     ka.timedOut,
	}
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	LastSeen     time.Time
	LastPingTime time.Time
	Pings        int
	PingFailures int
	TimedOut     bool
}

func (ka *KeepAlive) loop(ctx context.Context) {
	ka.mu.Lock()
	stopCh, doneCh := ka.stopCh, ka.doneCh
	ka.mu.Unlock()
	defer close(doneCh)

	check := time.NewTicker(ka.config.checkInterval())
	defer check.Stop()

	var pingC <-chan time.Time
	if ka.ping != nil && ka.config.PingInterval > 0 {
		pingTicker := time.NewTicker(ka.config.PingInterval)
		defer pingTicker.Stop()
		pingC = pingTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-check.C:
			if ka.handleTick() {
				return
			}
		case <-pingC:
			ka.sendPing(ctx)
		}
	}
}

// handleTick fires onTimeout once the silence window elapses.
func (ka *KeepAlive) handleTick() bool {
	ka.mu.Lock()
	if time.Since(ka.lastSeen) < ka.config.SilenceTimeout {
		ka.mu.Unlock()
		return false
	}
	ka.timedOut = true
	ka.running = false
	ka.mu.Unlock()

	if ka.onTimeout != nil {
		ka.onTimeout()
	}
	return true
}

// sendPing pings the hub. A failed ping is only counted; the silence
// window decides whether the connection is dead.
func (ka *KeepAlive) sendPing(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, ka.config.SilenceTimeout)
	defer cancel()
	err := ka.ping(ctx)

	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.lastPingTime = time.Now()
	ka.pings++
	if err != nil {
		ka.pingFailures++
	}
}
