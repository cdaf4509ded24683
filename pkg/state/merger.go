package state

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/livetiming/lt-go/pkg/telemetry"
	"github.com/livetiming/lt-go/pkg/topic"
)

// Merger errors.
var (
	ErrUnknownKind = errors.New("unknown envelope kind")
	ErrNotEncoded  = errors.New("binary topic value is not a string")
)

// MergerConfig configures a Merger.
type MergerConfig struct {
	// Logger receives per-envelope warnings. Nil disables logging.
	Logger *slog.Logger

	// SkipTelemetry stores binary topic payloads without decoding them.
	SkipTelemetry bool
}

// Result is the outcome of applying one envelope.
type Result struct {
	Topic     topic.Topic `json:"topic"`
	Kind      Kind        `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`

	// Value is the topic's merged value after the envelope. Read-only.
	Value Value `json:"value"`

	// Payload is Value resolved into its topic variant.
	Payload Payload `json:"-"`

	// Samples are the records decoded from a binary topic. Empty for plain
	// topics and when decoding failed.
	Samples []telemetry.Sample `json:"samples,omitempty"`

	// Partial is set on an update that arrived before the topic's first
	// snapshot since the last Reset.
	Partial bool `json:"partial,omitempty"`
}

// MergerStats counts envelopes applied since the merger was created.
type MergerStats struct {
	Snapshots    uint64
	Updates      uint64
	Partial      uint64
	DecodeErrors uint64
}

// SessionState is a copy of every topic's merged value.
type SessionState map[topic.Topic]Value

// Get returns the value for a topic.
func (s SessionState) Get(t topic.Topic) (Value, bool) {
	v, ok := s[t]
	return v, ok
}

// Topics returns the topics present, sorted by name.
func (s SessionState) Topics() []topic.Topic {
	out := make([]topic.Topic, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Merger owns the session state and applies envelopes to it.
//
// Apply is meant to be called from a single goroutine in arrival order.
// Snapshot, Value and Stats may be called concurrently with it.
type Merger struct {
	mu       sync.RWMutex
	values   map[topic.Topic]Value
	awaiting map[topic.Topic]struct{}
	stats    MergerStats

	logger *slog.Logger
	skip   bool
}

// NewMerger creates a Merger with empty session state.
func NewMerger(cfg MergerConfig) *Merger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Merger{
		values:   make(map[topic.Topic]Value),
		awaiting: make(map[topic.Topic]struct{}),
		logger:   logger,
		skip:     cfg.SkipTelemetry,
	}
}

// Apply merges env into the session state and resolves the result.
//
// For binary topics a decode failure is returned together with a Result:
// the stored value is still updated, only the samples are missing.
func (m *Merger) Apply(env Envelope) (Result, error) {
	var (
		merged  Value
		partial bool
	)

	m.mu.Lock()
	switch env.Kind {
	case Snapshot:
		merged = env.Payload
		delete(m.awaiting, env.Topic)
		m.stats.Snapshots++
	case Update:
		if _, ok := m.awaiting[env.Topic]; ok {
			partial = true
			m.stats.Partial++
		}
		merged = DeepMerge(m.values[env.Topic], env.Payload)
		m.stats.Updates++
	default:
		m.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownKind, env.Kind)
	}
	m.values[env.Topic] = merged
	m.mu.Unlock()

	if partial {
		m.logger.Warn("update before snapshot", "topic", env.Topic)
	}

	// Consumers get their own copy; the stored tree stays private.
	res := Result{
		Topic:     env.Topic,
		Kind:      env.Kind,
		Timestamp: env.Timestamp(),
		Value:     Clone(merged),
		Partial:   partial,
	}

	if !env.Topic.IsBinary() {
		res.Payload = DecodePayload(env.Topic, res.Value)
		return res, nil
	}
	if m.skip {
		res.Payload = Opaque{Source: env.Topic, Value: res.Value}
		return res, nil
	}

	samples, err := decodeBinary(env.Topic, merged, res.Timestamp)
	if err != nil {
		m.mu.Lock()
		m.stats.DecodeErrors++
		m.mu.Unlock()
		m.logger.Warn("telemetry decode failed", "topic", env.Topic, "error", err)
		res.Payload = Telemetry{Source: env.Topic}
		return res, err
	}
	res.Samples = samples
	res.Payload = Telemetry{Source: env.Topic, Samples: samples}
	return res, nil
}

func decodeBinary(t topic.Topic, v Value, ts time.Time) ([]telemetry.Sample, error) {
	raw, ok := v.(string)
	if !ok {
		return nil, &telemetry.SchemaError{Topic: t, Err: ErrNotEncoded}
	}
	return telemetry.Decode(t, raw, ts)
}

// Reset discards the whole session state. Updates for the expected topics
// are flagged Partial until their next snapshot.
func (m *Merger) Reset(expect ...topic.Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.values)
	clear(m.awaiting)
	for _, t := range expect {
		m.awaiting[t] = struct{}{}
	}
}

// AwaitingSnapshot reports whether a topic has had no snapshot since Reset.
func (m *Merger) AwaitingSnapshot(t topic.Topic) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.awaiting[t]
	return ok
}

// Snapshot returns a deep copy of the session state.
func (m *Merger) Snapshot() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(SessionState, len(m.values))
	for t, v := range m.values {
		out[t] = Clone(v)
	}
	return out
}

// Value returns a deep copy of one topic's value.
func (m *Merger) Value(t topic.Topic) (Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[t]
	if !ok {
		return nil, false
	}
	return Clone(v), true
}

// Stats returns the merge counters.
func (m *Merger) Stats() MergerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
