package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/livetiming/lt-go/pkg/connection/mocks"
	"github.com/livetiming/lt-go/pkg/dispatch"
	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/signalr"
	"github.com/livetiming/lt-go/pkg/state"
	"github.com/livetiming/lt-go/pkg/topic"
	"github.com/livetiming/lt-go/pkg/transport"
)

// fakeConn is an in-memory FrameConn. Frames pushed by the test are read
// by the client; writes go to respond.
type fakeConn struct {
	in      chan []byte
	closed  chan struct{}
	once    sync.Once
	respond func(c *fakeConn, data []byte)

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn(respond func(c *fakeConn, data []byte)) *fakeConn {
	return &fakeConn{
		in:      make(chan []byte, 64),
		closed:  make(chan struct{}),
		respond: respond,
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, transport.ErrConnectionClosed
	default:
	}
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, transport.ErrConnectionClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return transport.ErrConnectionClosed
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	c.mu.Unlock()
	if c.respond != nil {
		c.respond(c, data)
	}
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 443}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(frame string) {
	c.in <- []byte(frame)
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// subscribeReply answers a Subscribe invocation with the given snapshots,
// after sending the early frames.
func subscribeReply(snapshots map[string]any, early ...string) func(*fakeConn, []byte) {
	return func(c *fakeConn, data []byte) {
		var inv struct {
			M string
			I int
		}
		if json.Unmarshal(data, &inv) != nil || inv.M != signalr.MethodSubscribe {
			return
		}
		for _, f := range early {
			c.push(f)
		}
		r, _ := json.Marshal(snapshots)
		c.push(fmt.Sprintf(`{"R":%s,"I":"%d"}`, r, inv.I))
	}
}

func rejectReply(message string) func(*fakeConn, []byte) {
	return func(c *fakeConn, data []byte) {
		var inv struct{ I int }
		_ = json.Unmarshal(data, &inv)
		c.push(fmt.Sprintf(`{"I":"%d","E":%q}`, inv.I, message))
	}
}

func feedFrame(cursor, name, payload string) string {
	return fmt.Sprintf(`{"C":%q,"M":[{"H":"Streaming","M":"feed","A":[%q,%s,"2026-03-15T14:00:01.000Z"]}]}`,
		cursor, name, payload)
}

var testSnapshots = map[string]any{
	"TrackStatus": map[string]any{"Status": "1", "Message": "AllClear"},
	"LapCount":    map[string]any{"CurrentLap": 1, "TotalLaps": 57},
}

func negotiated() signalr.NegotiateResponse {
	return signalr.NegotiateResponse{
		ConnectionToken:  "tok",
		ConnectionID:     "hub-conn",
		KeepAliveTimeout: 20,
		TryWebSockets:    true,
		ProtocolVersion:  signalr.ClientProtocol,
	}
}

func testConfig() Config {
	return Config{
		URL:               "https://hub.test/signalr",
		Topics:            []topic.Topic{topic.TrackStatus, topic.LapCount},
		NegotiateAttempts: 3,
		Backoff:           BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond},
		PingInterval:      -1,
		SubscribeTimeout:  2 * time.Second,
	}
}

// stateRecorder collects state transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(_, newState State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, newState)
}

func (r *stateRecorder) seen(s State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, st := range r.states {
		if st == s {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, cfg Config, hub Hub, dialer Dialer) (*Client, *stateRecorder) {
	t.Helper()
	c, err := NewClient(cfg, WithHub(hub), WithDialer(dialer))
	require.NoError(t, err)
	rec := &stateRecorder{}
	c.OnStateChange(rec.record)
	t.Cleanup(c.Stop)
	return c, rec
}

func next(t *testing.T, sub *dispatch.Subscription[state.Result]) state.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := sub.Next(ctx)
	require.NoError(t, err)
	return res
}

func TestNewClient_RejectsUnknownTopic(t *testing.T) {
	cfg := testConfig()
	cfg.Topics = []topic.Topic{"NoSuchTopic"}

	_, err := NewClient(cfg)
	assert.ErrorIs(t, err, topic.ErrUnknownTopic)
}

func TestNewClient_RejectsDuplicateTopic(t *testing.T) {
	cfg := testConfig()
	cfg.Topics = []topic.Topic{topic.LapCount, topic.LapCount}

	_, err := NewClient(cfg)
	assert.Error(t, err)
}

func TestClientConnect_AppliesSnapshotsBeforeUpdates(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)

	early := feedFrame("d-1", "TrackStatus", `{"Status":"2","Message":"Yellow"}`)
	conn := newFakeConn(subscribeReply(testSnapshots, early))

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.MatchedBy(func(u string) bool {
		return strings.HasPrefix(u, "wss://hub.test/signalr/connect?") && strings.Contains(u, "connectionToken=tok")
	})).Return(conn, nil).Once()
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil).Once()
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	c, rec := newTestClient(t, testConfig(), hub, dialer)
	sub, err := c.Subscribe(0)
	require.NoError(t, err)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateStreaming, c.State())
	assert.Equal(t, 1, rec.seen(StateNegotiating))
	assert.Equal(t, 1, rec.seen(StateSubscribing))

	// Subscribe invocation on the wire.
	writes := conn.written()
	require.Len(t, writes, 1)
	var inv map[string]any
	require.NoError(t, json.Unmarshal(writes[0], &inv))
	assert.Equal(t, "Streaming", inv["H"])
	assert.Equal(t, "Subscribe", inv["M"])
	assert.Equal(t, []any{[]any{"TrackStatus", "LapCount"}}, inv["A"])

	// Snapshots in topic order, then the update that raced the result.
	first := next(t, sub)
	assert.Equal(t, topic.LapCount, first.Topic)
	assert.Equal(t, state.Snapshot, first.Kind)

	second := next(t, sub)
	assert.Equal(t, topic.TrackStatus, second.Topic)
	assert.Equal(t, state.Snapshot, second.Kind)

	third := next(t, sub)
	assert.Equal(t, topic.TrackStatus, third.Topic)
	assert.Equal(t, state.Update, third.Kind)
	assert.False(t, third.Partial)

	v, ok := c.Value(topic.TrackStatus)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"Status": "2", "Message": "Yellow"}, v)

	stats := c.Stats()
	assert.Equal(t, "d-1", stats.MessageID)
	assert.Equal(t, uint64(3), stats.Envelopes)
	assert.Equal(t, uint64(2), stats.Merger.Snapshots)
}

func TestClientConnect_AlreadyConnected(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	conn := newFakeConn(subscribeReply(testSnapshots))

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn, nil).Once()
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil).Once()
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	c, _ := newTestClient(t, testConfig(), hub, dialer)
	require.NoError(t, c.Connect(context.Background()))
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)
}

func TestClientConnect_RetriesNegotiation(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	failure := errors.New("connection refused")

	hub.EXPECT().Negotiate(mock.Anything).Return(signalr.NegotiateResponse{}, failure).Times(3)

	c, rec := newTestClient(t, testConfig(), hub, dialer)
	err := c.Connect(context.Background())

	var nerr *NegotiationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, 3, nerr.Attempts)
	assert.ErrorIs(t, err, ErrNegotiationFailed)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, rec.seen(StateDisconnected))
}

func TestClientConnect_RecoversWithinBudget(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	conn := newFakeConn(subscribeReply(testSnapshots))

	hub.EXPECT().Negotiate(mock.Anything).Return(signalr.NegotiateResponse{}, errors.New("timeout")).Once()
	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(nil, errors.New("handshake reset")).Once()
	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn, nil).Once()
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil).Once()
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	c, _ := newTestClient(t, testConfig(), hub, dialer)
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateStreaming, c.State())
}

func TestClientConnect_UnauthorizedIsNotRetried(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)

	hub.EXPECT().Negotiate(mock.Anything).
		Return(signalr.NegotiateResponse{}, &signalr.StatusError{Op: "negotiate", Code: 401}).Once()

	c, _ := newTestClient(t, testConfig(), hub, dialer)
	err := c.Connect(context.Background())

	var nerr *NegotiationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, 1, nerr.Attempts)
	assert.ErrorIs(t, err, signalr.ErrUnauthorized)
}

func TestClientConnect_SubscriptionRejected(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	conn := newFakeConn(rejectReply("unknown topic"))

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn, nil).Once()
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	c, _ := newTestClient(t, testConfig(), hub, dialer)
	err := c.Connect(context.Background())

	var serr *SubscriptionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "unknown topic", serr.Message)
	assert.Equal(t, StateDisconnected, c.State())
	assert.True(t, conn.isClosed())
}

func TestClientConnect_SubscribeTimeout(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	conn := newFakeConn(nil)

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn, nil).Once()
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	cfg := testConfig()
	cfg.SubscribeTimeout = 20 * time.Millisecond
	c, _ := newTestClient(t, cfg, hub, dialer)

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.ErrorIs(t, err, ErrSubscribeTimeout)
}

func TestClientRun_StopReturnsNil(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	conn := newFakeConn(subscribeReply(testSnapshots))

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn, nil).Once()
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil).Once()
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Once()

	c, _ := newTestClient(t, testConfig(), hub, dialer)
	sub, err := c.Subscribe(0)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	require.Eventually(t, func() bool { return c.State() == StateStreaming }, 2*time.Second, 5*time.Millisecond)

	conn.push(`{}`)
	conn.push(feedFrame("d-2", "LapCount", `{"CurrentLap":2}`))
	require.Eventually(t, func() bool { return c.Stats().Envelopes == 3 }, 2*time.Second, 5*time.Millisecond)

	c.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.Equal(t, StateClosed, c.State())
	assert.True(t, conn.isClosed())
	assert.Equal(t, uint64(1), c.Stats().KeepAlives)

	// Queued results stay readable, then the subscription ends.
	for range 3 {
		next(t, sub)
	}
	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, dispatch.ErrSubscriptionClosed)

	assert.NoError(t, c.Run(context.Background()))
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
}

func TestClientRun_StoppedBeforeRun(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	c, _ := newTestClient(t, testConfig(), hub, dialer)

	c.Stop()
	assert.Equal(t, StateClosed, c.State())
	assert.NoError(t, c.Run(context.Background()))
}

func TestClientRun_ContextCancel(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	conn := newFakeConn(subscribeReply(testSnapshots))

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn, nil).Once()
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil).Once()
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Once()

	c, _ := newTestClient(t, testConfig(), hub, dialer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.State() == StateStreaming }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateClosed, c.State())
}

func TestClientRun_ReconnectsWithFreshState(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)

	conn1 := newFakeConn(subscribeReply(testSnapshots))
	conn2 := newFakeConn(subscribeReply(map[string]any{
		"TrackStatus": map[string]any{"Status": "4", "Message": "SCDeployed"},
	}))

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Times(2)
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn1, nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn2, nil).Once()
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil).Times(2)
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	c, rec := newTestClient(t, testConfig(), hub, dialer)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	require.Eventually(t, func() bool { return c.State() == StateStreaming }, 2*time.Second, 5*time.Millisecond)
	conn1.push(feedFrame("d-1", "TrackStatus", `{"Extra":"x"}`))
	require.Eventually(t, func() bool {
		v, _ := c.Value(topic.TrackStatus)
		m, _ := v.(map[string]any)
		return m["Extra"] == "x"
	}, 2*time.Second, 5*time.Millisecond)

	// Hub drops the connection.
	conn1.Close()

	require.Eventually(t, func() bool {
		return rec.seen(StateStreaming) == 2 && c.State() == StateStreaming
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.seen(StateReconnecting))
	assert.Equal(t, uint64(1), c.Stats().Reconnects)

	v, ok := c.Value(topic.TrackStatus)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"Status": "4", "Message": "SCDeployed"}, v)

	_, ok = c.Value(topic.LapCount)
	assert.False(t, ok, "state from the lost session must be discarded")

	c.Stop()
	require.NoError(t, <-done)
}

func TestClientRun_KeepAliveTimeoutReconnects(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil)
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, string) (transport.FrameConn, error) {
			return newFakeConn(subscribeReply(testSnapshots)), nil
		})
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil)
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	cfg := testConfig()
	cfg.KeepAliveTimeout = 40 * time.Millisecond
	c, rec := newTestClient(t, cfg, hub, dialer)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	require.Eventually(t, func() bool { return rec.seen(StateReconnecting) >= 1 }, 2*time.Second, 5*time.Millisecond)

	c.Stop()
	require.NoError(t, <-done)
}

func TestClientRun_TerminalErrorOnReconnect(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	conn := newFakeConn(subscribeReply(testSnapshots))

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn, nil).Once()
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil).Once()
	hub.EXPECT().Negotiate(mock.Anything).Return(signalr.NegotiateResponse{}, errors.New("refused")).Times(3)
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	c, _ := newTestClient(t, testConfig(), hub, dialer)
	sub, err := c.Subscribe(0)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	require.Eventually(t, func() bool { return c.State() == StateStreaming }, 2*time.Second, 5*time.Millisecond)
	conn.Close()

	select {
	case err := <-done:
		var nerr *NegotiationError
		require.ErrorAs(t, err, &nerr)
		assert.Equal(t, 3, nerr.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not give up")
	}
	assert.Equal(t, StateClosed, c.State())

	// Consumers see the end of the stream.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		if _, err := sub.Next(ctx); err != nil {
			assert.ErrorIs(t, err, dispatch.ErrSubscriptionClosed)
			break
		}
	}
}

func TestClientRun_StopDuringBackoff(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)

	called := make(chan struct{}, 1)
	hub.EXPECT().Negotiate(mock.Anything).RunAndReturn(func(context.Context) (signalr.NegotiateResponse, error) {
		select {
		case called <- struct{}{}:
		default:
		}
		return signalr.NegotiateResponse{}, errors.New("unavailable")
	}).Once()

	cfg := testConfig()
	cfg.Backoff = BackoffConfig{Initial: time.Hour}
	c, _ := newTestClient(t, cfg, hub, dialer)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	<-called
	start := time.Now()
	c.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the backoff wait")
	}
	assert.Equal(t, StateClosed, c.State())
}

func TestClientRun_MalformedFrameIsSkipped(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	conn := newFakeConn(subscribeReply(testSnapshots))

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn, nil).Once()
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil).Once()
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	capture := &captureLogger{}
	cfg := testConfig()
	cfg.Capture = capture
	c, _ := newTestClient(t, cfg, hub, dialer)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	require.Eventually(t, func() bool { return c.State() == StateStreaming }, 2*time.Second, 5*time.Millisecond)

	conn.push(`{"C":`)
	conn.push(feedFrame("d-3", "LapCount", `{"CurrentLap":3}`))

	require.Eventually(t, func() bool {
		v, _ := c.Value(topic.LapCount)
		m, _ := v.(map[string]any)
		return m["CurrentLap"] == float64(3)
	}, 2*time.Second, 5*time.Millisecond)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.MalformedFrames)
	assert.Equal(t, StateStreaming, stats.State)
	assert.Positive(t, capture.count(log.CategoryError))
	assert.Positive(t, capture.count(log.CategorySnapshot))

	c.Stop()
	require.NoError(t, <-done)
}

func TestClientSubscribe_DropsOldest(t *testing.T) {
	hub := mocks.NewMockHub(t)
	dialer := mocks.NewMockDialer(t)
	conn := newFakeConn(subscribeReply(testSnapshots))

	hub.EXPECT().Negotiate(mock.Anything).Return(negotiated(), nil).Once()
	dialer.EXPECT().Dial(mock.Anything, mock.Anything).Return(conn, nil).Once()
	hub.EXPECT().Start(mock.Anything, "tok").Return(nil).Once()
	hub.EXPECT().Abort(mock.Anything, "tok").Return(nil).Maybe()

	var (
		mu    sync.Mutex
		drops []dispatch.DropEvent
	)
	cfg := testConfig()
	cfg.OnDrop = func(e dispatch.DropEvent) {
		mu.Lock()
		drops = append(drops, e)
		mu.Unlock()
	}
	c, _ := newTestClient(t, cfg, hub, dialer)
	sub, err := c.Subscribe(1)
	require.NoError(t, err)

	require.NoError(t, c.Connect(context.Background()))

	// Two snapshots into a queue of one: only the newest survives.
	res := next(t, sub)
	assert.Equal(t, topic.TrackStatus, res.Topic)
	assert.Equal(t, uint64(1), sub.Dropped())

	mu.Lock()
	assert.Len(t, drops, 1)
	mu.Unlock()
}
