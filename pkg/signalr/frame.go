package signalr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/livetiming/lt-go/pkg/state"
	"github.com/livetiming/lt-go/pkg/topic"
)

// MethodFeed is the hub-to-client method carrying topic updates.
const MethodFeed = "feed"

// MalformedFrameError reports a frame, or one message inside a frame, that
// could not be decoded.
type MalformedFrameError struct {
	// Message is the index of the bad message in the frame, -1 when the
	// frame as a whole is unreadable.
	Message int
	Err     error
}

func (e *MalformedFrameError) Error() string {
	if e.Message < 0 {
		return fmt.Sprintf("malformed frame: %v", e.Err)
	}
	return fmt.Sprintf("malformed frame message %d: %v", e.Message, e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// Result is the hub's answer to an invocation.
type Result struct {
	ID    string
	Value state.Value
	Error string
}

// Failed reports whether the hub returned an error for the call.
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Snapshots turns a Subscribe result, a map of topic name to value, into
// Snapshot envelopes ordered by topic name.
func (r *Result) Snapshots(receivedAt time.Time) []state.Envelope {
	m, ok := r.Value.(map[string]any)
	if !ok {
		return nil
	}
	out := make([]state.Envelope, 0, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		out = append(out, state.Envelope{
			Topic:      topic.Topic(name),
			Kind:       state.Snapshot,
			Payload:    m[name],
			ReceivedAt: receivedAt,
		})
	}
	return out
}

// Frame is one decoded websocket text message.
type Frame struct {
	MessageID   string
	GroupsToken string
	Initialized bool
	Result      *Result
	Envelopes   []state.Envelope
}

// KeepAlive reports whether the frame carried nothing but liveness.
func (f Frame) KeepAlive() bool {
	return f.MessageID == "" && f.GroupsToken == "" && !f.Initialized &&
		f.Result == nil && len(f.Envelopes) == 0
}

type rawFrame struct {
	C *string         `json:"C"`
	G *string         `json:"G"`
	S json.RawMessage `json:"S"`
	M []rawMessage    `json:"M"`
	I json.RawMessage `json:"I"`
	R json.RawMessage `json:"R"`
	E *string         `json:"E"`
}

type rawMessage struct {
	H string            `json:"H"`
	M string            `json:"M"`
	A []json.RawMessage `json:"A"`
}

// ParseFrame decodes a hub frame. Feed messages become Update envelopes
// stamped with receivedAt.
//
// An unreadable frame yields an empty Frame and a MalformedFrameError. A
// readable frame with bad messages yields the good envelopes together with
// one MalformedFrameError per bad message.
func ParseFrame(data []byte, receivedAt time.Time) (Frame, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, &MalformedFrameError{Message: -1, Err: err}
	}

	var f Frame
	if raw.C != nil {
		f.MessageID = *raw.C
	}
	if raw.G != nil {
		f.GroupsToken = *raw.G
	}
	if len(raw.S) > 0 {
		f.Initialized = string(raw.S) == "1"
	}

	if len(raw.I) > 0 {
		res, err := parseResult(raw)
		if err != nil {
			return Frame{}, &MalformedFrameError{Message: -1, Err: err}
		}
		f.Result = res
	}

	var errs []error
	for i, msg := range raw.M {
		if !strings.EqualFold(msg.M, MethodFeed) {
			continue
		}
		env, err := parseFeed(msg, receivedAt)
		if err != nil {
			errs = append(errs, &MalformedFrameError{Message: i, Err: err})
			continue
		}
		f.Envelopes = append(f.Envelopes, env)
	}
	return f, errors.Join(errs...)
}

func parseResult(raw rawFrame) (*Result, error) {
	id, err := callID(raw.I)
	if err != nil {
		return nil, err
	}
	res := &Result{ID: id}
	if raw.E != nil {
		res.Error = *raw.E
	}
	if len(raw.R) > 0 {
		v, err := state.ParseValue(raw.R)
		if err != nil {
			return nil, err
		}
		res.Value = v
	}
	return res, nil
}

// callID accepts the id as a JSON string or number.
func callID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("invocation id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", fmt.Errorf("invocation id: %w", err)
	}
	return n.String(), nil
}

func parseFeed(msg rawMessage, receivedAt time.Time) (state.Envelope, error) {
	if len(msg.A) < 2 {
		return state.Envelope{}, fmt.Errorf("feed: want at least 2 arguments, got %d", len(msg.A))
	}

	var name string
	if err := json.Unmarshal(msg.A[0], &name); err != nil || name == "" {
		return state.Envelope{}, fmt.Errorf("feed: topic must be a non-empty string")
	}

	payload, err := state.ParseValue(msg.A[1])
	if err != nil {
		return state.Envelope{}, fmt.Errorf("feed %s: %w", name, err)
	}

	env := state.Envelope{
		Topic:      topic.Topic(name),
		Kind:       state.Update,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}
	if len(msg.A) > 2 {
		var utc string
		if json.Unmarshal(msg.A[2], &utc) == nil {
			if t, err := time.Parse(time.RFC3339Nano, utc); err == nil {
				env.HubTime = t
			}
		}
	}
	return env, nil
}
