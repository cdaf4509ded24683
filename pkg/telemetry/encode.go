package telemetry

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/flate"
)

// Encode produces a payload in the hub's binary format from any JSON
// serialisable value: JSON, raw deflate, then standard base64.
func Encode(v any) (string, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(text); err != nil {
		return "", fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("deflate: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CarDataPayload builds the decompressed CarData.z document for samples
// sharing one entry timestamp.
func CarDataPayload(utc string, cars map[string]map[ChannelID]float64) map[string]any {
	carsDoc := make(map[string]any, len(cars))
	for car, channels := range cars {
		ch := make(map[string]any, len(channels))
		for id, v := range channels {
			ch[fmt.Sprint(int(id))] = v
		}
		carsDoc[car] = map[string]any{"Channels": ch}
	}
	return map[string]any{
		"Entries": []any{map[string]any{"Utc": utc, "Cars": carsDoc}},
	}
}

// PositionPayload builds the decompressed Position.z document for samples
// sharing one timestamp.
func PositionPayload(timestamp string, samples ...PositionSample) map[string]any {
	entries := make(map[string]any, len(samples))
	for _, s := range samples {
		entries[s.CarNumber] = map[string]any{
			"Status": s.Status,
			"X":      s.X,
			"Y":      s.Y,
			"Z":      s.Z,
		}
	}
	return map[string]any{
		"Position": []any{map[string]any{"Timestamp": timestamp, "Entries": entries}},
	}
}
