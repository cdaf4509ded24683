package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func captureSlog(t *testing.T, level slog.Level, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	NewSlogAdapter(slog.New(handler)).Log(event)

	if buf.Len() == 0 {
		return nil
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	entry := captureSlog(t, slog.LevelDebug, NewFrameEvent("conn-123", DirectionIn, make([]byte, 256), time.Now()))
	if entry == nil {
		t.Fatal("no output produced")
	}

	if entry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v", entry["conn_id"])
	}
	if entry["direction"] != "IN" {
		t.Errorf("direction: got %v", entry["direction"])
	}
	if entry["layer"] != "TRANSPORT" {
		t.Errorf("layer: got %v", entry["layer"])
	}
	if entry["frame_size"] != float64(256) {
		t.Errorf("frame_size: got %v", entry["frame_size"])
	}
	if _, ok := entry["source"]; ok {
		t.Error("live events should not carry a source attribute")
	}
}

func TestSlogAdapterLogsEnvelopeEvent(t *testing.T) {
	entry := captureSlog(t, slog.LevelDebug, Event{
		Timestamp: time.Now(),
		Layer:     LayerFeed,
		Category:  CategoryMessage,
		Source:    SourceArchive,
		Topic:     "CarData.z",
		MessageID: "d-9",
		Envelope:  &EnvelopeEvent{Kind: EnvelopeUpdate, Samples: 20, Partial: true},
	})
	if entry == nil {
		t.Fatal("no output produced")
	}

	want := map[string]any{
		"topic":   "CarData.z",
		"msg_id":  "d-9",
		"source":  "ARCHIVE",
		"kind":    "UPDATE",
		"samples": float64(20),
		"partial": true,
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %v", k, entry[k], v)
		}
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	entry := captureSlog(t, slog.LevelInfo, Event{Timestamp: time.Now()})
	if entry != nil {
		t.Errorf("debug event logged at info level: %v", entry)
	}
}
