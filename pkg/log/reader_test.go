package log

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, name string, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close test log: %v", err)
	}
	return path
}

func readAll(t *testing.T, path string, filter Filter) []Event {
	t.Helper()
	reader, err := NewFilteredReader(path, filter)
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	var out []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, event)
	}
}

func sampleEvents(base time.Time) []Event {
	return []Event{
		{Timestamp: base, ConnectionID: "conn-1", Direction: DirectionOut, Layer: LayerProtocol, Category: CategoryControl,
			ControlMsg: &ControlMsgEvent{Type: ControlMsgNegotiate}},
		{Timestamp: base.Add(time.Second), ConnectionID: "conn-1", Layer: LayerTransport, Category: CategoryMessage,
			Frame: &FrameEvent{Size: 2, Data: []byte("{}")}},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "conn-1", Layer: LayerFeed, Category: CategoryMessage,
			Topic: "TrackStatus", Envelope: &EnvelopeEvent{Kind: EnvelopeSnapshot}},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "conn-2", Layer: LayerFeed, Category: CategoryMessage,
			Topic: "LapCount", Source: SourceArchive, Envelope: &EnvelopeEvent{Kind: EnvelopeUpdate}},
		{Timestamp: base.Add(4 * time.Second), ConnectionID: "conn-2", Layer: LayerFeed, Category: CategorySnapshot,
			Source: SourceArchive, Snapshot: &SnapshotEvent{Topics: map[string]any{}}},
	}
}

func TestReaderIteratesEvents(t *testing.T) {
	for _, name := range []string{"plain" + Extension, "packed" + Extension + CompressedSuffix} {
		t.Run(name, func(t *testing.T) {
			events := sampleEvents(time.Now())
			path := createTestLogFile(t, name, events)

			read := readAll(t, path, Filter{})
			if len(read) != len(events) {
				t.Fatalf("got %d events, want %d", len(read), len(events))
			}
			for i := range events {
				if read[i].ConnectionID != events[i].ConnectionID || read[i].Layer != events[i].Layer {
					t.Errorf("event %d: got %s/%v, want %s/%v", i,
						read[i].ConnectionID, read[i].Layer, events[i].ConnectionID, events[i].Layer)
				}
			}
		})
	}
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty"+Extension)
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("expected io.EOF for empty file, got %v", err)
	}
}

func TestReaderHandlesTruncatedFile(t *testing.T) {
	path := createTestLogFile(t, "trunc"+Extension, sampleEvents(time.Now())[:1])

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err == nil || err == io.EOF {
		t.Errorf("expected decode error for truncated file, got %v", err)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing"+Extension)); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, "filter"+Extension, sampleEvents(base))

	layerFeed := LayerFeed
	dirOut := DirectionOut
	catSnap := CategorySnapshot
	archive := SourceArchive
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"none", Filter{}, 5},
		{"connection", Filter{ConnectionID: "conn-2"}, 2},
		{"layer", Filter{Layer: &layerFeed}, 3},
		{"direction", Filter{Direction: &dirOut}, 1},
		{"category", Filter{Category: &catSnap}, 1},
		{"topic", Filter{Topic: "TrackStatus"}, 1},
		{"source", Filter{Source: &archive}, 2},
		{"time range", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"combined", Filter{ConnectionID: "conn-1", Layer: &layerFeed}, 1},
		{"no match", Filter{Topic: "WeatherData"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(readAll(t, path, tt.filter)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}
