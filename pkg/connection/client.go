package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/livetiming/lt-go/pkg/dispatch"
	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/signalr"
	"github.com/livetiming/lt-go/pkg/state"
	"github.com/livetiming/lt-go/pkg/topic"
	"github.com/livetiming/lt-go/pkg/transport"
)

// maxTransportID bounds the random "tid" sent with the connect request.
const maxTransportID = 10

// Client is one streaming session against a hub. It negotiates, connects,
// subscribes, merges envelopes into session state and dispatches the
// results to consumers, reconnecting with backoff when the connection is
// lost. Clients are independent; any number may run in one process.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	endpoint   *signalr.Endpoint
	hub        Hub
	dialer     Dialer
	httpClient *http.Client
	backoff    *Backoff
	merger     *state.Merger
	dispatcher *dispatch.Dispatcher[state.Result]
	tracker    *snapshotTracker

	mu            sync.Mutex
	state         State
	running       bool
	conn          transport.FrameConn
	negotiated    signalr.NegotiateResponse
	connID        string
	messageID     string
	groupsToken   string
	keepAlive     *transport.KeepAlive
	onStateChange func(oldState, newState State)

	invocation atomic.Int64

	stopOnce     sync.Once
	stopCh       chan struct{}
	shutdownOnce sync.Once

	frames       atomic.Uint64
	keepAlives   atomic.Uint64
	envelopes    atomic.Uint64
	malformed    atomic.Uint64
	decodeErrors atomic.Uint64
	reconnects   atomic.Uint64
}

// Option customises a Client.
type Option func(*Client)

// WithHub replaces the REST side of the protocol.
func WithHub(h Hub) Option {
	return func(c *Client) { c.hub = h }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithHTTPClient sets the client used for REST calls. Its cookie jar, if
// any, is shared with the websocket dialer.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client. Nothing is sent until Connect or Run.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint, err := signalr.NewEndpoint(cfg.URL, cfg.Hub)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		endpoint: endpoint,
		backoff:  NewBackoffWithConfig(cfg.Backoff),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.httpClient = &http.Client{
			Jar:     jar,
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: transport.NewClientTLSConfig(cfg.TLS),
			},
		}
	}
	if c.hub == nil {
		c.hub = &signalr.REST{Endpoint: endpoint, HTTP: c.httpClient, UserAgent: cfg.UserAgent}
	}
	if c.dialer == nil {
		d, err := transport.NewDialer(transport.DialerConfig{
			TLSConfig: cfg.TLS,
			Jar:       c.httpClient.Jar,
			Header:    http.Header{"User-Agent": []string{cfg.UserAgent}},
		})
		if err != nil {
			return nil, err
		}
		c.dialer = wsDialer{d: d}
	}

	c.merger = state.NewMerger(state.MergerConfig{Logger: logger, SkipTelemetry: cfg.SkipTelemetry})
	c.dispatcher = dispatch.New[state.Result](dispatch.Config{Logger: logger, OnDrop: c.onDrop})
	c.tracker = newSnapshotTracker(cfg.SnapshotPolicy, c.merger.Snapshot, cfg.Capture)
	return c, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange sets a callback for state changes. It runs on the
// goroutine that caused the change and must not block.
func (c *Client) OnStateChange(fn func(oldState, newState State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// Subscribe registers a consumer. Zero capacity uses Config.DispatchCapacity.
func (c *Client) Subscribe(capacity int) (*dispatch.Subscription[state.Result], error) {
	if capacity == 0 {
		capacity = c.cfg.DispatchCapacity
	}
	return c.dispatcher.Subscribe("", capacity)
}

// Snapshot returns a copy of the session state.
func (c *Client) Snapshot() state.SessionState {
	return c.merger.Snapshot()
}

// Value returns a copy of one topic's merged value.
func (c *Client) Value(t topic.Topic) (state.Value, bool) {
	return c.merger.Value(t)
}

// Topics returns the subscribed topics.
func (c *Client) Topics() []topic.Topic {
	return append([]topic.Topic(nil), c.cfg.Topics...)
}

// Connect negotiates, dials, subscribes and applies the subscribe
// snapshots. It fails with a NegotiationError once the retry budget is
// spent and with a SubscriptionError when the hub rejects the topics.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case c.running:
		c.mu.Unlock()
		return ErrAlreadyRunning
	case c.state != StateDisconnected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.running = true
	c.mu.Unlock()
	defer c.setRunning(false)

	ctx, cancel := c.withStop(ctx)
	defer cancel()

	err := c.establish(ctx)
	if c.stopped() {
		c.shutdown("stopped")
		return ErrClosed
	}
	if err != nil {
		c.dropConn()
		c.setState(StateDisconnected, err.Error())
	}
	return err
}

// Run reads and merges frames until Stop is called or ctx is done, in
// which case it returns nil. A lost connection is re-established with
// backoff; Run only returns an error when re-establishing fails with a
// NegotiationError or SubscriptionError. The client is closed when Run
// returns.
//
// Run connects first unless Connect already succeeded. After Stop it
// returns nil without connecting.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateClosed && c.stopped():
		c.mu.Unlock()
		return nil
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case c.running:
		c.mu.Unlock()
		return ErrAlreadyRunning
	case c.state != StateDisconnected && c.state != StateStreaming:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.running = true
	initial := c.state == StateDisconnected
	c.mu.Unlock()
	defer c.setRunning(false)

	ctx, cancel := c.withStop(ctx)
	defer cancel()

	var err error
	if initial {
		err = c.establish(ctx)
	}

	for {
		if ctx.Err() != nil {
			c.shutdown(context.Cause(ctx).Error())
			return nil
		}
		if err != nil {
			if terminal(err) {
				c.logger.Error("session cannot be re-established", "error", err)
				c.shutdown(err.Error())
				return err
			}
			err = c.reconnect(ctx, err)
			continue
		}
		err = c.stream(ctx)
	}
}

// Stop closes the client. A running Run returns nil once the frame being
// processed is finished; a backoff wait is interrupted. Stop is idempotent.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		c.shutdown("stopped")
	}
}

// Stats reports client counters.
type Stats struct {
	State        State
	ConnectionID string
	MessageID    string

	Frames          uint64
	KeepAlives      uint64
	Envelopes       uint64
	MalformedFrames uint64
	DecodeErrors    uint64
	Reconnects      uint64

	Merger    state.MergerStats
	Dispatch  dispatch.Stats
	KeepAlive transport.KeepAliveStats
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		State:        c.state,
		ConnectionID: c.connID,
		MessageID:    c.messageID,
	}
	ka := c.keepAlive
	c.mu.Unlock()

	s.Frames = c.frames.Load()
	s.KeepAlives = c.keepAlives.Load()
	s.Envelopes = c.envelopes.Load()
	s.MalformedFrames = c.malformed.Load()
	s.DecodeErrors = c.decodeErrors.Load()
	s.Reconnects = c.reconnects.Load()
	s.Merger = c.merger.Stats()
	s.Dispatch = c.dispatcher.Stats()
	if ka != nil {
		s.KeepAlive = ka.Stats()
	}
	return s
}

// establish runs one full session setup: handshake (with retries),
// subscribe, start.
func (c *Client) establish(ctx context.Context) error {
	c.setState(StateNegotiating, "")

	conn, err := c.handshake(ctx)
	if err != nil {
		return err
	}

	c.setState(StateSubscribing, "")
	if err := c.subscribe(ctx, conn); err != nil {
		return err
	}

	c.mu.Lock()
	token := c.negotiated.ConnectionToken
	c.mu.Unlock()
	if err := c.hub.Start(ctx, token); err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return &ConnectionLostError{State: StateSubscribing, Err: err}
	}
	c.captureControl(log.DirectionIn, log.ControlMsgStart, signalr.ResponseStarted)

	c.setState(StateStreaming, "")
	c.backoff.Reset()
	c.tracker.emitInitialSnapshot()
	return nil
}

// handshake negotiates and dials, retrying with backoff up to the budget.
func (c *Client) handshake(ctx context.Context) (transport.FrameConn, error) {
	for attempt := 1; ; attempt++ {
		conn, err := c.dialSession(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}

		c.logger.Warn("handshake failed", "attempt", attempt, "error", err)
		c.captureError(log.LayerProtocol, "negotiate", err)

		if permanent(err) || attempt >= c.cfg.NegotiateAttempts {
			return nil, &NegotiationError{Attempts: attempt, Err: err}
		}
		if err := c.backoff.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// permanent reports handshake failures that retrying cannot fix.
func permanent(err error) bool {
	var herr *transport.HandshakeError
	if errors.As(err, &herr) && (herr.StatusCode == http.StatusUnauthorized || herr.StatusCode == http.StatusForbidden) {
		return true
	}
	return errors.Is(err, signalr.ErrUnauthorized) ||
		errors.Is(err, signalr.ErrWebSocketsUnsupported) ||
		errors.Is(err, signalr.ErrProtocolVersion)
}

func (c *Client) dialSession(ctx context.Context) (transport.FrameConn, error) {
	c.captureControl(log.DirectionOut, log.ControlMsgNegotiate, "")
	resp, err := c.hub.Negotiate(ctx)
	if err != nil {
		return nil, err
	}
	c.captureControl(log.DirectionIn, log.ControlMsgNegotiate, resp.ConnectionID)

	conn, err := c.dialer.Dial(ctx, c.endpoint.ConnectURL(resp.ConnectionToken, rand.IntN(maxTransportID+1)))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	connID := log.NewConnectionID()
	if lc, ok := conn.(interface{ SetLogger(log.Logger, string) }); ok && c.cfg.Capture != nil {
		lc.SetLogger(c.cfg.Capture, connID)
	}

	c.mu.Lock()
	c.conn = conn
	c.negotiated = resp
	c.connID = connID
	c.messageID = ""
	c.groupsToken = ""
	c.mu.Unlock()
	c.tracker.setConnID(connID)

	c.logger.Debug("websocket connected", "conn_id", connID, "hub_conn_id", resp.ConnectionID)
	return conn, nil
}

// subscribe sends the Subscribe invocation and applies its snapshots.
// Session state is reset first: every topic waits for a fresh snapshot.
func (c *Client) subscribe(ctx context.Context, conn transport.FrameConn) error {
	topics := c.cfg.Topics
	c.merger.Reset(topics...)

	inv := signalr.SubscribeInvocation(c.endpoint.Hub(), topics, int(c.invocation.Add(1)-1))
	data, err := inv.Encode()
	if err != nil {
		return fmt.Errorf("encode subscribe: %w", err)
	}
	if err := conn.WriteMessage(data); err != nil {
		return &ConnectionLostError{State: StateSubscribing, Err: err}
	}
	c.captureControl(log.DirectionOut, log.ControlMsgSubscribe, strings.Join(topic.Names(topics), ","))

	var timedOut atomic.Bool
	timer := time.AfterFunc(c.cfg.SubscribeTimeout, func() {
		timedOut.Store(true)
		conn.Close()
	})
	defer timer.Stop()
	stopWatch := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopWatch()

	// Feed messages racing the result are applied after the snapshots.
	var pending []state.Envelope
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			if timedOut.Load() {
				err = ErrSubscribeTimeout
			}
			return &ConnectionLostError{State: StateSubscribing, Err: err}
		}
		c.frames.Add(1)

		now := time.Now()
		frame, perr := signalr.ParseFrame(data, now)
		if perr != nil {
			c.reportMalformed(perr)
		}
		c.noteFrame(frame)
		pending = append(pending, frame.Envelopes...)

		r := frame.Result
		if r == nil || r.ID != inv.CallID() {
			continue
		}
		if r.Failed() {
			c.captureError(log.LayerProtocol, "subscribe", errors.New(r.Error))
			return &SubscriptionError{Topics: topics, Message: r.Error}
		}
		if _, ok := r.Value.(map[string]any); !ok {
			return &SubscriptionError{Topics: topics, Message: "result carries no snapshots"}
		}

		snapshots := r.Snapshots(now)
		c.captureControl(log.DirectionIn, log.ControlMsgSubscribe, fmt.Sprintf("%d snapshots", len(snapshots)))
		if missing := len(topics) - len(snapshots); missing > 0 {
			c.logger.Info("hub sent no snapshot for some topics", "missing", missing)
		}

		for _, env := range snapshots {
			c.apply(env)
		}
		for _, env := range pending {
			c.apply(env)
		}
		return nil
	}
}

// stream reads frames until the connection fails or ctx is done.
func (c *Client) stream(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	silence := c.cfg.KeepAliveTimeout
	if silence <= 0 {
		silence = c.negotiated.KeepAlive()
	}
	c.mu.Unlock()
	if conn == nil {
		return &ConnectionLostError{State: StateStreaming, Err: transport.ErrConnectionClosed}
	}
	defer c.dropConn()

	var ping func(context.Context) error
	if c.cfg.PingInterval > 0 {
		ping = c.ping
	}
	var silent atomic.Bool
	ka := transport.NewKeepAlive(transport.KeepAliveConfig{
		SilenceTimeout: silence,
		PingInterval:   max(c.cfg.PingInterval, 0),
	}, ping, func() {
		silent.Store(true)
		c.logger.Warn("no frames within keep-alive window", "timeout", silence)
		conn.Close()
	})
	ka.Start(ctx)
	defer ka.Stop()

	c.mu.Lock()
	c.keepAlive = ka
	c.mu.Unlock()

	stopWatch := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopWatch()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			if silent.Load() {
				err = ErrKeepAliveTimeout
			}
			return &ConnectionLostError{State: StateStreaming, Err: err}
		}
		ka.Touch()
		c.handleFrame(data, time.Now())
	}
}

// reconnect waits out the backoff and establishes a new session. The
// session state of the lost connection is discarded by subscribe.
func (c *Client) reconnect(ctx context.Context, cause error) error {
	c.logger.Warn("connection lost", "error", cause)
	c.captureError(log.LayerTransport, "stream", cause)
	c.dropConn()
	c.setState(StateReconnecting, cause.Error())
	c.reconnects.Add(1)

	delay := c.backoff.Peek()
	c.logger.Info("reconnecting", "attempt", c.backoff.Attempts()+1, "delay", delay)
	if err := c.backoff.Wait(ctx); err != nil {
		return err
	}
	return c.establish(ctx)
}

func (c *Client) handleFrame(data []byte, receivedAt time.Time) {
	c.frames.Add(1)

	frame, err := signalr.ParseFrame(data, receivedAt)
	if err != nil {
		c.reportMalformed(err)
	}
	c.noteFrame(frame)

	if err == nil && frame.KeepAlive() {
		c.keepAlives.Add(1)
		c.captureControl(log.DirectionIn, log.ControlMsgKeepAlive, "")
		return
	}
	for _, env := range frame.Envelopes {
		c.apply(env)
	}
}

// apply merges one envelope and hands the result to the consumers.
func (c *Client) apply(env state.Envelope) {
	res, err := c.merger.Apply(env)
	if errors.Is(err, state.ErrUnknownKind) {
		c.logger.Warn("envelope dropped", "topic", env.Topic, "error", err)
		return
	}
	if err != nil {
		c.decodeErrors.Add(1)
		c.captureError(log.LayerFeed, "decode "+string(env.Topic), err)
	}

	c.envelopes.Add(1)
	c.captureEnvelope(env, res)
	c.tracker.onEnvelope()
	c.dispatcher.Dispatch(res)
}

func (c *Client) noteFrame(f signalr.Frame) {
	c.mu.Lock()
	if f.MessageID != "" {
		c.messageID = f.MessageID
	}
	if f.GroupsToken != "" {
		c.groupsToken = f.GroupsToken
	}
	c.mu.Unlock()

	if f.Initialized {
		c.captureControl(log.DirectionIn, log.ControlMsgInit, "")
	}
}

func (c *Client) reportMalformed(err error) {
	c.malformed.Add(1)
	c.logger.Warn("malformed frame", "error", err)
	c.captureError(log.LayerProtocol, "parse frame", err)
}

func (c *Client) ping(ctx context.Context) error {
	err := c.hub.Ping(ctx)
	if err != nil {
		c.logger.Warn("ping failed", "error", err)
		c.captureError(log.LayerProtocol, "ping", err)
		return err
	}
	c.captureControl(log.DirectionIn, log.ControlMsgPing, signalr.ResponsePong)
	return nil
}

func (c *Client) onDrop(e dispatch.DropEvent) {
	c.logger.Debug("consumer backpressure drop", "consumer", e.Subscriber, "total", e.Total)
	if c.cfg.OnDrop != nil {
		c.cfg.OnDrop(e)
	}
}

// setState moves to a new state and reports the change. Illegal moves,
// and any move out of Closed, are ignored.
func (c *Client) setState(to State, reason string) {
	c.mu.Lock()
	from := c.state
	if from == to || !canTransition(from, to) {
		c.mu.Unlock()
		return
	}
	c.state = to
	fn := c.onStateChange
	connID := c.connID
	c.mu.Unlock()

	c.logger.Info("connection state changed", "from", from, "to", to, "reason", reason)
	c.logCapture(log.Event{
		ConnectionID: connID,
		Layer:        log.LayerProtocol,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
	if fn != nil {
		fn(from, to)
	}
}

func (c *Client) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}

// dropConn closes and forgets the current websocket.
func (c *Client) dropConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.keepAlive = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// shutdown aborts the hub session, closes the consumers and moves to
// Closed. Runs once.
func (c *Client) shutdown(reason string) {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		token := c.negotiated.ConnectionToken
		c.mu.Unlock()
		c.dropConn()

		if token != "" {
			ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
			if err := c.hub.Abort(ctx, token); err != nil {
				c.logger.Debug("abort failed", "error", err)
			} else {
				c.captureControl(log.DirectionOut, log.ControlMsgAbort, "")
			}
			cancel()
		}

		c.setState(StateClosed, reason)
		c.dispatcher.Close()
	})
}

func (c *Client) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// withStop derives a context that is also cancelled by Stop.
func (c *Client) withStop(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		select {
		case <-c.stopCh:
			cancel(errStopped)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

func (c *Client) logCapture(e log.Event) {
	if c.cfg.Capture == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	c.cfg.Capture.Log(e)
}

func (c *Client) currentIDs() (connID, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID, c.messageID
}

func (c *Client) captureControl(dir log.Direction, typ log.ControlMsgType, detail string) {
	if c.cfg.Capture == nil {
		return
	}
	connID, _ := c.currentIDs()
	c.logCapture(log.Event{
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerProtocol,
		Category:     log.CategoryControl,
		ControlMsg:   &log.ControlMsgEvent{Type: typ, Detail: detail},
	})
}

func (c *Client) captureError(layer log.Layer, op string, err error) {
	if c.cfg.Capture == nil {
		return
	}
	connID, _ := c.currentIDs()
	data := &log.ErrorEventData{Layer: layer, Message: err.Error(), Context: op}
	var serr *signalr.StatusError
	if errors.As(err, &serr) {
		data.Code = &serr.Code
	}
	c.logCapture(log.Event{
		ConnectionID: connID,
		Layer:        layer,
		Category:     log.CategoryError,
		Error:        data,
	})
}

func (c *Client) captureEnvelope(env state.Envelope, res state.Result) {
	if c.cfg.Capture == nil {
		return
	}
	connID, messageID := c.currentIDs()
	ev := &log.EnvelopeEvent{
		Kind:    log.EnvelopeUpdate,
		Payload: env.Payload,
		Samples: len(res.Samples),
		Partial: res.Partial,
	}
	if env.Kind == state.Snapshot {
		ev.Kind = log.EnvelopeSnapshot
	}
	if !env.HubTime.IsZero() {
		hub := env.HubTime
		ev.HubTime = &hub
	}
	c.logCapture(log.Event{
		Timestamp:    env.ReceivedAt,
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerFeed,
		Category:     log.CategoryMessage,
		Topic:        string(env.Topic),
		MessageID:    messageID,
		Envelope:     ev,
	})
}
