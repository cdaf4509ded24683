package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/state"
	"github.com/livetiming/lt-go/pkg/topic"
)

// StateOptions controls the state command.
type StateOptions struct {
	// At stops the reconstruction at this instant. Zero means the end of
	// the capture.
	At time.Time

	// Topic restricts the output to one topic.
	Topic string
}

// RunState rebuilds the session state recorded in a capture and prints it
// as JSON. The latest checkpoint before At seeds the state and the
// envelopes after it are merged on top.
func RunState(path string, opts StateOptions, w io.Writer) error {
	var only topic.Topic
	if opts.Topic != "" {
		t, err := topic.Parse(opts.Topic)
		if err != nil {
			return err
		}
		only = t
	}

	var filter log.Filter
	if !opts.At.IsZero() {
		// Filter.TimeEnd is exclusive.
		end := opts.At.Add(time.Nanosecond)
		filter.TimeEnd = &end
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	merger := state.NewMerger(state.MergerConfig{SkipTelemetry: true})
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		replayEvent(merger, event)
	}

	out := make(map[string]any)
	for t, v := range merger.Snapshot() {
		if only != "" && t != only {
			continue
		}
		out[t.String()] = v
	}
	if only != "" && len(out) == 0 {
		return fmt.Errorf("%s has no value in this capture", only)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if only != "" {
		return enc.Encode(out[only.String()])
	}
	return enc.Encode(out)
}

func replayEvent(m *state.Merger, event log.Event) {
	switch {
	case event.Snapshot != nil:
		m.Reset()
		for name, v := range event.Snapshot.Topics {
			// Telemetry is not decoded, so Apply cannot fail here.
			_, _ = m.Apply(state.Envelope{
				Topic:      topic.Topic(name),
				Kind:       state.Snapshot,
				Payload:    v,
				ReceivedAt: event.Timestamp,
			})
		}
	case event.Envelope != nil:
		kind := state.Update
		if event.Envelope.Kind == log.EnvelopeSnapshot {
			kind = state.Snapshot
		}
		_, _ = m.Apply(state.Envelope{
			Topic:      topic.Topic(event.Topic),
			Kind:       kind,
			Payload:    event.Envelope.Payload,
			ReceivedAt: event.Timestamp,
		})
	}
}
