package connection

import (
	"time"

	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/state"
)

// SnapshotPolicy decides when the capture gets a session checkpoint.
// A checkpoint fires after MaxEnvelopes envelopes, or after MaxInterval
// provided at least MinEnvelopes were applied since the last one.
type SnapshotPolicy struct {
	MaxEnvelopes int
	MaxInterval  time.Duration
	MinEnvelopes int
}

// DefaultSnapshotPolicy returns the default checkpoint policy.
func DefaultSnapshotPolicy() SnapshotPolicy {
	return SnapshotPolicy{
		MaxEnvelopes: 5000,
		MaxInterval:  time.Minute,
		MinEnvelopes: 10,
	}
}

// snapshotTracker counts applied envelopes and writes session checkpoints
// to the capture based on a hybrid policy (envelope count OR time interval).
type snapshotTracker struct {
	policy        SnapshotPolicy
	envelopeCount int
	lastSnapshot  time.Time
	logger        log.Logger
	connID        string

	session func() state.SessionState

	// timeNow returns the current time. Defaults to time.Now.
	// Replaced in tests for deterministic behavior.
	timeNow func() time.Time
}

func newSnapshotTracker(policy SnapshotPolicy, session func() state.SessionState, logger log.Logger) *snapshotTracker {
	return &snapshotTracker{
		policy:  policy,
		session: session,
		logger:  logger,
		timeNow: time.Now,
	}
}

// setConnID tags later checkpoints with a new connection.
func (t *snapshotTracker) setConnID(id string) {
	t.connID = id
}

// onEnvelope is called after each applied envelope.
func (t *snapshotTracker) onEnvelope() {
	if t.logger == nil {
		return
	}
	t.envelopeCount++
	if t.shouldEmit() {
		t.emitSnapshot()
	}
}

func (t *snapshotTracker) shouldEmit() bool {
	if t.policy.MaxEnvelopes > 0 && t.envelopeCount >= t.policy.MaxEnvelopes {
		return true
	}

	// The time trigger needs a minimum amount of traffic.
	if t.policy.MaxInterval > 0 && t.timeNow().Sub(t.lastSnapshot) >= t.policy.MaxInterval {
		return t.envelopeCount >= t.policy.MinEnvelopes
	}

	return false
}

func (t *snapshotTracker) emitSnapshot() {
	now := t.timeNow()
	count := t.envelopeCount
	t.envelopeCount = 0
	t.lastSnapshot = now

	session := t.session()
	topics := make(map[string]any, len(session))
	for name, v := range session {
		topics[string(name)] = v
	}

	t.logger.Log(log.Event{
		Timestamp:    now,
		ConnectionID: t.connID,
		Layer:        log.LayerFeed,
		Category:     log.CategorySnapshot,
		Snapshot:     &log.SnapshotEvent{Topics: topics, Envelopes: count},
	})
}

// emitInitialSnapshot checkpoints unconditionally, right after the
// subscribe snapshots are applied, so every capture segment starts with
// the full session.
func (t *snapshotTracker) emitInitialSnapshot() {
	if t.logger == nil {
		return
	}
	t.emitSnapshot()
}
