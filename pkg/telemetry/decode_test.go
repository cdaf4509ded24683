package telemetry

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetiming/lt-go/pkg/topic"
)

var envelopeTime = time.Date(2023, 3, 5, 15, 4, 0, 0, time.UTC)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestDecodeCarDataRoundTrip(t *testing.T) {
	channels := map[ChannelID]float64{
		ChannelRPM:      11141,
		ChannelSpeed:    289,
		ChannelGear:     7,
		ChannelThrottle: 100,
		ChannelBrake:    0,
		ChannelDRS:      12,
	}
	raw, err := Encode(CarDataPayload("", map[string]map[ChannelID]float64{"44": channels}))
	require.NoError(t, err)

	samples, err := Decode(topic.CarData, raw, envelopeTime)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	car, ok := samples[0].(CarSample)
	require.True(t, ok)
	assert.Equal(t, "44", car.CarNumber)
	assert.Equal(t, envelopeTime, car.Timestamp, "no entry time falls back to envelope time")
	assert.Equal(t, channels, car.Channels)
}

func TestDecodePositionRoundTrip(t *testing.T) {
	want := PositionSample{CarNumber: "44", Status: "OnTrack", X: 100, Y: 200, Z: 0}
	raw, err := Encode(PositionPayload("", want))
	require.NoError(t, err)

	samples, err := Decode(topic.Position, raw, envelopeTime)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	want.Timestamp = envelopeTime
	assert.Equal(t, want, samples[0])
}

func TestDecodeCapturedCarData(t *testing.T) {
	samples, err := Decode(topic.CarData, readFixture(t, "cardata.z.txt"), envelopeTime)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	first := samples[0].(CarSample)
	assert.Equal(t, "1", first.CarNumber, "cars ordered numerically within an entry")
	assert.Equal(t, 10952.0, first.Channels[ChannelRPM])

	second := samples[1].(CarSample)
	assert.Equal(t, "44", second.CarNumber)
	speed, ok := second.Channel(ChannelSpeed)
	assert.True(t, ok)
	assert.Equal(t, 289.0, speed)
	assert.Equal(t, time.Date(2023, 3, 5, 15, 4, 5, 123456700, time.UTC), second.Timestamp)

	third := samples[2].(CarSample)
	assert.Equal(t, "44", third.CarNumber)
	assert.Equal(t, 11210.0, third.Channels[ChannelRPM])
	assert.True(t, third.Timestamp.After(second.Timestamp))
}

func TestDecodeCapturedPositionWithoutPadding(t *testing.T) {
	samples, err := Decode(topic.Position, readFixture(t, "position.z.txt"), envelopeTime)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, PositionSample{
		CarNumber: "16",
		Timestamp: time.Date(2023, 3, 5, 15, 4, 5, 987654300, time.UTC),
		Status:    "OnTrack",
		X:         -1520,
		Y:         3411,
		Z:         7104,
	}, samples[0])
	assert.Equal(t, "44", samples[1].Car())
}

func TestDecodeErrors(t *testing.T) {
	notDeflate := "aGVsbG8gd29ybGQ=" // "hello world", not deflate data
	notJSON, err := Encode("just a string")
	require.NoError(t, err)
	wrongShape, err := Encode(map[string]any{"Something": 1})
	require.NoError(t, err)
	badChannel, err := Encode(map[string]any{"Entries": []any{
		map[string]any{"Cars": map[string]any{"44": map[string]any{"Channels": map[string]any{"rpm": 1}}}},
	}})
	require.NoError(t, err)

	tests := []struct {
		name   string
		topic  topic.Topic
		raw    string
		target any
	}{
		{"corrupted base64", topic.CarData, "%%%not-base64%%%", new(*EncodingError)},
		{"empty", topic.Position, "   ", new(*EncodingError)},
		{"not deflate", topic.CarData, notDeflate, new(*DecompressionError)},
		{"not an object", topic.CarData, notJSON, new(*SchemaError)},
		{"missing entries", topic.CarData, wrongShape, new(*SchemaError)},
		{"missing position", topic.Position, wrongShape, new(*SchemaError)},
		{"non-numeric channel", topic.CarData, badChannel, new(*SchemaError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples, err := Decode(tt.topic, tt.raw, envelopeTime)
			assert.Empty(t, samples)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "got %T: %v", err, err)
		})
	}
}

func TestDecodeUnsupportedTopic(t *testing.T) {
	_, err := Decode(topic.TimingData, "e30=", envelopeTime)
	assert.ErrorIs(t, err, ErrUnsupportedTopic)
}

func TestMalformedPayloadDoesNotAffectNextDecode(t *testing.T) {
	_, err := Decode(topic.Position, "!!corrupt!!", envelopeTime)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, topic.Position, encErr.Topic)

	raw, err := Encode(PositionPayload("", PositionSample{CarNumber: "44", Status: "OnTrack", X: 100, Y: 200}))
	require.NoError(t, err)
	samples, err := Decode(topic.Position, raw, envelopeTime)
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestDecodeIsDeterministic(t *testing.T) {
	raw := readFixture(t, "cardata.z.txt")
	a, err := Decode(topic.CarData, raw, envelopeTime)
	require.NoError(t, err)
	b, err := Decode(topic.CarData, raw, envelopeTime)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChannelIDString(t *testing.T) {
	assert.Equal(t, "RPM", ChannelRPM.String())
	assert.Equal(t, "DRS", ChannelDRS.String())
	assert.Equal(t, "7", ChannelID(7).String())
}

func TestCompareCars(t *testing.T) {
	assert.Less(t, compareCars("2", "10"), 0)
	assert.Greater(t, compareCars("X", "10"), 0)
	assert.Less(t, compareCars("A", "B"), 0)
}
