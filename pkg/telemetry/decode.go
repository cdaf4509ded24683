package telemetry

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/livetiming/lt-go/pkg/topic"
)

// MaxDecompressedSize bounds the inflated size of a single payload.
const MaxDecompressedSize = 16 << 20

type carDataDoc struct {
	Entries *[]carDataEntry `json:"Entries"`
}

type carDataEntry struct {
	Utc  string                    `json:"Utc"`
	Cars map[string]carDataChannels `json:"Cars"`
}

type carDataChannels struct {
	Channels map[string]float64 `json:"Channels"`
}

type positionDoc struct {
	Position *[]positionEntry `json:"Position"`
}

type positionEntry struct {
	Timestamp string                    `json:"Timestamp"`
	Entries   map[string]positionRecord `json:"Entries"`
}

type positionRecord struct {
	Status string  `json:"Status"`
	X      float64 `json:"X"`
	Y      float64 `json:"Y"`
	Z      float64 `json:"Z"`
}

// Decode turns a binary topic payload into samples.
//
// Samples carry the entry's own timestamp when it has one and ts otherwise.
// They are ordered by entry, then by car number. On any error no samples are
// returned. Decode has no side effects and is safe for concurrent use.
func Decode(t topic.Topic, raw string, ts time.Time) ([]Sample, error) {
	switch t {
	case topic.CarData, topic.Position:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTopic, t)
	}

	text, err := Inflate(t, raw)
	if err != nil {
		return nil, err
	}

	if t == topic.CarData {
		return decodeCarData(text, ts)
	}
	return decodePosition(text, ts)
}

// Inflate performs the base64 and raw deflate steps of Decode and returns the
// decompressed JSON text.
func Inflate(t topic.Topic, raw string) ([]byte, error) {
	compressed, err := decodeBase64(raw)
	if err != nil {
		return nil, &EncodingError{Topic: t, Err: err}
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	text, err := io.ReadAll(io.LimitReader(r, MaxDecompressedSize+1))
	if err != nil {
		return nil, &DecompressionError{Topic: t, Err: err}
	}
	if len(text) > MaxDecompressedSize {
		return nil, &DecompressionError{Topic: t, Err: ErrPayloadTooLarge}
	}
	return text, nil
}

// decodeBase64 accepts standard base64 with or without trailing padding.
func decodeBase64(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, errors.New("empty payload")
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func decodeCarData(text []byte, ts time.Time) ([]Sample, error) {
	var doc carDataDoc
	if err := json.Unmarshal(text, &doc); err != nil {
		return nil, &SchemaError{Topic: topic.CarData, Err: err}
	}
	if doc.Entries == nil {
		return nil, &SchemaError{Topic: topic.CarData, Err: errors.New("missing Entries")}
	}

	var out []Sample
	for _, entry := range *doc.Entries {
		at := entryTime(entry.Utc, ts)
		for _, car := range sortedCars(entry.Cars) {
			channels := make(map[ChannelID]float64, len(entry.Cars[car].Channels))
			for key, v := range entry.Cars[car].Channels {
				id, err := strconv.Atoi(key)
				if err != nil {
					return nil, &SchemaError{Topic: topic.CarData, Err: fmt.Errorf("car %s: channel %q: %w", car, key, err)}
				}
				channels[ChannelID(id)] = v
			}
			out = append(out, CarSample{CarNumber: car, Timestamp: at, Channels: channels})
		}
	}
	return out, nil
}

func decodePosition(text []byte, ts time.Time) ([]Sample, error) {
	var doc positionDoc
	if err := json.Unmarshal(text, &doc); err != nil {
		return nil, &SchemaError{Topic: topic.Position, Err: err}
	}
	if doc.Position == nil {
		return nil, &SchemaError{Topic: topic.Position, Err: errors.New("missing Position")}
	}

	var out []Sample
	for _, entry := range *doc.Position {
		at := entryTime(entry.Timestamp, ts)
		for _, car := range sortedCars(entry.Entries) {
			rec := entry.Entries[car]
			out = append(out, PositionSample{
				CarNumber: car,
				Timestamp: at,
				Status:    rec.Status,
				X:         rec.X,
				Y:         rec.Y,
				Z:         rec.Z,
			})
		}
	}
	return out, nil
}

func entryTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fallback
	}
	return t
}

// sortedCars returns map keys ordered numerically, falling back to string
// order for non-numeric car numbers.
func sortedCars[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareCars)
	return keys
}

func compareCars(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na - nb
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
