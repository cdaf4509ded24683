package commands

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/livetiming/lt-go/pkg/log"
)

func stateCapture(t *testing.T) (string, time.Time) {
	t.Helper()
	ts := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerFeed, Category: log.CategoryMessage, Topic: "LapCount",
			Envelope: &log.EnvelopeEvent{Kind: log.EnvelopeSnapshot,
				Payload: map[string]any{"CurrentLap": 1, "TotalLaps": 57}}},
		{Timestamp: ts.Add(time.Minute), Layer: log.LayerFeed, Category: log.CategoryMessage, Topic: "LapCount",
			Envelope: &log.EnvelopeEvent{Kind: log.EnvelopeUpdate,
				Payload: map[string]any{"CurrentLap": 2}}},
		{Timestamp: ts.Add(2 * time.Minute), Layer: log.LayerFeed, Category: log.CategorySnapshot,
			Snapshot: &log.SnapshotEvent{Topics: map[string]any{
				"LapCount":    map[string]any{"CurrentLap": 2, "TotalLaps": 57},
				"TrackStatus": map[string]any{"Status": "1", "Message": "AllClear"},
			}}},
		{Timestamp: ts.Add(3 * time.Minute), Layer: log.LayerFeed, Category: log.CategoryMessage, Topic: "TrackStatus",
			Envelope: &log.EnvelopeEvent{Kind: log.EnvelopeUpdate,
				Payload: map[string]any{"Status": "4", "Message": "SCDeployed"}}},
	}
	return createTestLogFile(t, events), ts
}

func decodeState(t *testing.T, buf *bytes.Buffer) map[string]map[string]any {
	t.Helper()
	var out map[string]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("state output is not JSON: %v\n%s", err, buf.String())
	}
	return out
}

func TestRunStateAtEnd(t *testing.T) {
	path, _ := stateCapture(t)

	var buf bytes.Buffer
	if err := RunState(path, StateOptions{}, &buf); err != nil {
		t.Fatalf("RunState failed: %v", err)
	}
	got := decodeState(t, &buf)

	if got["TrackStatus"]["Status"] != "4" || got["TrackStatus"]["Message"] != "SCDeployed" {
		t.Errorf("TrackStatus = %v, want the safety car update", got["TrackStatus"])
	}
	if got["LapCount"]["CurrentLap"] != float64(2) || got["LapCount"]["TotalLaps"] != float64(57) {
		t.Errorf("LapCount = %v", got["LapCount"])
	}
}

func TestRunStateAtInstant(t *testing.T) {
	path, start := stateCapture(t)

	var buf bytes.Buffer
	if err := RunState(path, StateOptions{At: start.Add(time.Minute)}, &buf); err != nil {
		t.Fatalf("RunState failed: %v", err)
	}
	got := decodeState(t, &buf)

	if _, ok := got["TrackStatus"]; ok {
		t.Errorf("TrackStatus should not exist yet: %v", got)
	}
	// The update merged into the snapshot.
	if got["LapCount"]["CurrentLap"] != float64(2) || got["LapCount"]["TotalLaps"] != float64(57) {
		t.Errorf("LapCount = %v", got["LapCount"])
	}
}

func TestRunStateSingleTopic(t *testing.T) {
	path, start := stateCapture(t)

	var buf bytes.Buffer
	opts := StateOptions{At: start.Add(2 * time.Minute), Topic: "TrackStatus"}
	if err := RunState(path, opts, &buf); err != nil {
		t.Fatalf("RunState failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["Message"] != "AllClear" {
		t.Errorf("TrackStatus at checkpoint = %v, want AllClear", got)
	}
}

func TestRunStateErrors(t *testing.T) {
	path, start := stateCapture(t)

	if err := RunState(path, StateOptions{Topic: "NoSuchTopic"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown topic")
	}
	opts := StateOptions{At: start, Topic: "TrackStatus"}
	if err := RunState(path, opts, &bytes.Buffer{}); err == nil {
		t.Error("expected error for a topic without a value")
	}
}
