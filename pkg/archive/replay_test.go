package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetiming/lt-go/pkg/dispatch"
	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/state"
	"github.com/livetiming/lt-go/pkg/telemetry"
	"github.com/livetiming/lt-go/pkg/topic"
)

type recordingCapture struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingCapture) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newReplayFixture(t *testing.T, cfg ReplayConfig) (*Replayer, *dispatch.Subscription[state.Result]) {
	t.Helper()
	cfg.Merger = state.NewMerger(state.MergerConfig{})
	cfg.Dispatcher = dispatch.New[state.Result](dispatch.Config{})
	t.Cleanup(cfg.Dispatcher.Close)

	sub, err := cfg.Dispatcher.Subscribe("test", 64)
	require.NoError(t, err)
	r, err := NewReplayer(cfg)
	require.NoError(t, err)
	return r, sub
}

func drain(sub *dispatch.Subscription[state.Result]) []state.Result {
	var out []state.Result
	for {
		res, ok := sub.TryNext()
		if !ok {
			return out
		}
		out = append(out, res)
	}
}

func TestNewReplayer_RequiresMerger(t *testing.T) {
	_, err := NewReplayer(ReplayConfig{})
	assert.ErrorIs(t, err, ErrNoMerger)
}

func TestReplayer_FirstLinePerTopicIsSnapshot(t *testing.T) {
	capture := &recordingCapture{}
	start := time.Date(2026, 3, 15, 15, 0, 0, 0, time.UTC)
	r, sub := newReplayFixture(t, ReplayConfig{Start: start, Capture: capture})

	lines := []Line{
		{Topic: topic.TrackStatus, Offset: 500 * time.Millisecond, Payload: map[string]any{"Status": "1", "Message": "AllClear"}},
		{Topic: topic.LapCount, Offset: time.Second, Payload: map[string]any{"CurrentLap": float64(1), "TotalLaps": float64(57)}},
		{Topic: topic.TrackStatus, Offset: time.Minute, Payload: map[string]any{"Status": "4", "Message": "SCDeployed"}},
		{Topic: topic.LapCount, Offset: 90 * time.Second, Payload: map[string]any{"CurrentLap": float64(2)}},
	}

	stats, err := r.Replay(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Lines)
	assert.Equal(t, 2, stats.Snapshots)
	assert.Equal(t, 2, stats.Updates)

	got := drain(sub)
	require.Len(t, got, 4)
	assert.Equal(t, state.Snapshot, got[0].Kind)
	assert.Equal(t, state.Snapshot, got[1].Kind)
	assert.Equal(t, state.Update, got[2].Kind)
	assert.Equal(t, state.Update, got[3].Kind)
	for _, res := range got {
		assert.False(t, res.Partial)
	}

	assert.Equal(t, start.Add(90*time.Second), got[3].Timestamp)
	assert.Equal(t, map[string]any{"CurrentLap": float64(2), "TotalLaps": float64(57)}, got[3].Value)

	require.Len(t, capture.events, 4)
	for _, e := range capture.events {
		assert.Equal(t, log.SourceArchive, e.Source)
		assert.Equal(t, log.LayerFeed, e.Layer)
		require.NotNil(t, e.Envelope)
	}
	assert.Equal(t, log.EnvelopeSnapshot, capture.events[0].Envelope.Kind)
	assert.Equal(t, log.EnvelopeUpdate, capture.events[3].Envelope.Kind)
}

func TestReplayer_DecodesTelemetry(t *testing.T) {
	r, sub := newReplayFixture(t, ReplayConfig{})

	encoded, err := telemetry.Encode(telemetry.PositionPayload("2026-03-15T15:00:01.000Z", telemetry.PositionSample{
		CarNumber: "1",
		Status:    "OnTrack",
		X:         10,
		Y:         20,
	}))
	require.NoError(t, err)

	stats, err := r.Replay(context.Background(), []Line{
		{Topic: topic.Position, Offset: time.Second, Payload: encoded},
		{Topic: topic.Position, Offset: 2 * time.Second, Payload: "@@not base64@@"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DecodeErrors)

	got := drain(sub)
	require.Len(t, got, 2)
	require.Len(t, got[0].Samples, 1)
	assert.Empty(t, got[1].Samples)
}

func TestReplayer_Pacing(t *testing.T) {
	r, sub := newReplayFixture(t, ReplayConfig{Speed: 2})

	var mu sync.Mutex
	var slept []time.Duration
	now := time.Date(2026, 3, 15, 15, 0, 0, 0, time.UTC)
	r.timeNow = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	r.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		slept = append(slept, d)
		if d > 0 {
			now = now.Add(d)
		}
		return nil
	}

	_, err := r.Replay(context.Background(), []Line{
		{Topic: topic.Heartbeat, Offset: 10 * time.Second, Payload: map[string]any{}},
		{Topic: topic.Heartbeat, Offset: 14 * time.Second, Payload: map[string]any{}},
		{Topic: topic.Heartbeat, Offset: 20 * time.Second, Payload: map[string]any{}},
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0, 2 * time.Second, 3 * time.Second}, slept)
	assert.Len(t, drain(sub), 3)
}

func TestReplayer_Interrupted(t *testing.T) {
	r, sub := newReplayFixture(t, ReplayConfig{Speed: 1})

	cause := errors.New("user quit")
	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel(cause)
	}()

	stats, err := r.Replay(ctx, []Line{
		{Topic: topic.Heartbeat, Offset: 0, Payload: map[string]any{}},
		{Topic: topic.Heartbeat, Offset: time.Hour, Payload: map[string]any{}},
	})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, stats.Lines)
	assert.Len(t, drain(sub), 1)
}

func TestReplayer_Empty(t *testing.T) {
	r, _ := newReplayFixture(t, ReplayConfig{})
	stats, err := r.Replay(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats)
}
