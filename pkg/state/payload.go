package state

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/livetiming/lt-go/pkg/telemetry"
	"github.com/livetiming/lt-go/pkg/topic"
)

// Payload is a topic value resolved into a typed variant. The set of variants
// is closed; topics without a schema resolve to Opaque.
type Payload interface {
	Topic() topic.Topic
	payload()
}

// RaceControlMessage is one steward or race director message.
type RaceControlMessage struct {
	Utc          time.Time
	Lap          int
	Category     string
	Message      string
	Flag         string
	Scope        string
	Sector       int
	Status       string
	Mode         string
	RacingNumber string
}

// RaceControlMessages lists messages in publication order.
type RaceControlMessages struct {
	Messages []RaceControlMessage
}

// TrackStatus is the current track condition ("1" all clear ... "7" VSC ending).
type TrackStatus struct {
	Status  string
	Message string
}

// LapCount is the race lap counter.
type LapCount struct {
	CurrentLap int
	TotalLaps  int
}

// WeatherData holds the latest weather station readings.
type WeatherData struct {
	AirTemp       float64
	TrackTemp     float64
	Humidity      float64
	Pressure      float64
	WindSpeed     float64
	WindDirection float64
	Rainfall      bool
}

// Heartbeat carries the hub clock.
type Heartbeat struct {
	Utc time.Time
}

// ExtrapolatedClock is the session clock.
type ExtrapolatedClock struct {
	Utc           time.Time
	Remaining     string
	Extrapolating bool
}

// SessionStatus is the session lifecycle (Inactive, Started, Aborted,
// Finished, Finalised, Ends).
type SessionStatus struct {
	Status string
}

// Telemetry holds samples decoded from a binary topic.
type Telemetry struct {
	Source  topic.Topic
	Samples []telemetry.Sample
}

// Opaque is any value without a known schema.
type Opaque struct {
	Source topic.Topic
	Value  Value
}

func (RaceControlMessages) Topic() topic.Topic { return topic.RaceControlMessages }
func (TrackStatus) Topic() topic.Topic         { return topic.TrackStatus }
func (LapCount) Topic() topic.Topic            { return topic.LapCount }
func (WeatherData) Topic() topic.Topic         { return topic.WeatherData }
func (Heartbeat) Topic() topic.Topic           { return topic.Heartbeat }
func (ExtrapolatedClock) Topic() topic.Topic   { return topic.ExtrapolatedClock }
func (SessionStatus) Topic() topic.Topic       { return topic.SessionStatus }
func (p Telemetry) Topic() topic.Topic         { return p.Source }
func (p Opaque) Topic() topic.Topic            { return p.Source }

func (RaceControlMessages) payload() {}
func (TrackStatus) payload()         {}
func (LapCount) payload()            {}
func (WeatherData) payload()         {}
func (Heartbeat) payload()           {}
func (ExtrapolatedClock) payload()   {}
func (SessionStatus) payload()       {}
func (Telemetry) payload()           {}
func (Opaque) payload()              {}

// DecodePayload resolves a plain topic value into its variant. Values that
// do not fit the topic's schema resolve to Opaque; it never fails.
func DecodePayload(t topic.Topic, v Value) Payload {
	m, ok := v.(map[string]any)
	if !ok {
		return Opaque{Source: t, Value: v}
	}

	switch t {
	case topic.RaceControlMessages:
		if msgs, ok := raceControlMessages(m["Messages"]); ok {
			return RaceControlMessages{Messages: msgs}
		}
	case topic.TrackStatus:
		return TrackStatus{Status: str(m["Status"]), Message: str(m["Message"])}
	case topic.LapCount:
		return LapCount{CurrentLap: integer(m["CurrentLap"]), TotalLaps: integer(m["TotalLaps"])}
	case topic.WeatherData:
		return WeatherData{
			AirTemp:       number(m["AirTemp"]),
			TrackTemp:     number(m["TrackTemp"]),
			Humidity:      number(m["Humidity"]),
			Pressure:      number(m["Pressure"]),
			WindSpeed:     number(m["WindSpeed"]),
			WindDirection: number(m["WindDirection"]),
			Rainfall:      boolean(m["Rainfall"]),
		}
	case topic.Heartbeat:
		return Heartbeat{Utc: timestamp(m["Utc"])}
	case topic.ExtrapolatedClock:
		return ExtrapolatedClock{
			Utc:           timestamp(m["Utc"]),
			Remaining:     str(m["Remaining"]),
			Extrapolating: boolean(m["Extrapolating"]),
		}
	case topic.SessionStatus:
		return SessionStatus{Status: str(m["Status"])}
	}
	return Opaque{Source: t, Value: v}
}

// raceControlMessages accepts the snapshot list form and the keyed map form
// that updates produce.
func raceControlMessages(v Value) ([]RaceControlMessage, bool) {
	var items []any
	switch t := v.(type) {
	case nil:
		return nil, true
	case []any:
		items = t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareIndex)
		for _, k := range keys {
			items = append(items, t[k])
		}
	default:
		return nil, false
	}

	out := make([]RaceControlMessage, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, RaceControlMessage{
			Utc:          timestamp(m["Utc"]),
			Lap:          integer(m["Lap"]),
			Category:     str(m["Category"]),
			Message:      str(m["Message"]),
			Flag:         str(m["Flag"]),
			Scope:        str(m["Scope"]),
			Sector:       integer(m["Sector"]),
			Status:       str(m["Status"]),
			Mode:         str(m["Mode"]),
			RacingNumber: str(m["RacingNumber"]),
		})
	}
	return out, true
}

// compareIndex orders numeric keys numerically, ahead of any other key.
func compareIndex(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func str(v Value) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// number reads numbers the hub sends either as JSON numbers or as strings.
func number(v Value) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

func integer(v Value) int {
	return int(number(v))
}

func boolean(v Value) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	case float64:
		return t != 0
	default:
		return false
	}
}

func timestamp(v Value) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// Some topics omit the zone designator.
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t
	}
	return time.Time{}
}
