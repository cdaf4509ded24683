package telemetry

import (
	"strconv"
	"time"
)

// ChannelID identifies a car telemetry channel.
type ChannelID int

// Known CarData.z channels.
const (
	ChannelRPM      ChannelID = 0
	ChannelSpeed    ChannelID = 2
	ChannelGear     ChannelID = 3
	ChannelThrottle ChannelID = 4
	ChannelBrake    ChannelID = 5
	ChannelDRS      ChannelID = 45
)

// String returns the channel name, or its number for unnamed channels.
func (c ChannelID) String() string {
	switch c {
	case ChannelRPM:
		return "RPM"
	case ChannelSpeed:
		return "Speed"
	case ChannelGear:
		return "Gear"
	case ChannelThrottle:
		return "Throttle"
	case ChannelBrake:
		return "Brake"
	case ChannelDRS:
		return "DRS"
	default:
		return strconv.Itoa(int(c))
	}
}

// Sample is a per-car record decoded from a binary topic.
// It is implemented by CarSample and PositionSample only.
type Sample interface {
	Car() string
	Time() time.Time
	sample()
}

// CarSample holds one car's channel values at one instant.
type CarSample struct {
	CarNumber string                `json:"car"`
	Timestamp time.Time             `json:"timestamp"`
	Channels  map[ChannelID]float64 `json:"channels"`
}

func (s CarSample) Car() string     { return s.CarNumber }
func (s CarSample) Time() time.Time { return s.Timestamp }
func (CarSample) sample()           {}

// Channel returns the value of a channel and whether it was present.
func (s CarSample) Channel(id ChannelID) (float64, bool) {
	v, ok := s.Channels[id]
	return v, ok
}

// PositionSample holds one car's track coordinates at one instant.
type PositionSample struct {
	CarNumber string    `json:"car"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
}

func (s PositionSample) Car() string     { return s.CarNumber }
func (s PositionSample) Time() time.Time { return s.Timestamp }
func (PositionSample) sample()           {}

var (
	_ Sample = CarSample{}
	_ Sample = PositionSample{}
)
