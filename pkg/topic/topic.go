// Package topic defines the closed set of feed topics published by the
// live-timing hub.
//
// Each topic is either plain (its payload is a JSON value consumed as-is) or
// binary (its payload is a base64 string of raw-deflate compressed JSON).
// Binary topics carry the ".z" suffix on the wire.
package topic

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownTopic is returned by Parse for names outside the known set.
var ErrUnknownTopic = errors.New("unknown topic")

// Topic names a feed subject.
type Topic string

// Feed topics.
const (
	ArchiveStatus          Topic = "ArchiveStatus"
	AudioStreams           Topic = "AudioStreams"
	CarData                Topic = "CarData.z"
	ChampionshipPrediction Topic = "ChampionshipPrediction"
	ContentStreams         Topic = "ContentStreams"
	CurrentTyres           Topic = "CurrentTyres"
	DriverList             Topic = "DriverList"
	DriverRaceInfo         Topic = "DriverRaceInfo"
	DriverScore            Topic = "DriverScore"
	ExtrapolatedClock      Topic = "ExtrapolatedClock"
	Heartbeat              Topic = "Heartbeat"
	LapCount               Topic = "LapCount"
	LapSeries              Topic = "LapSeries"
	PitLaneTimeCollection  Topic = "PitLaneTimeCollection"
	Position               Topic = "Position.z"
	RaceControlMessages    Topic = "RaceControlMessages"
	SessionData            Topic = "SessionData"
	SessionInfo            Topic = "SessionInfo"
	SessionStatus          Topic = "SessionStatus"
	SPFeed                 Topic = "SPFeed"
	TeamRadio              Topic = "TeamRadio"
	TimingAppData          Topic = "TimingAppData"
	TimingData             Topic = "TimingData"
	TimingDataF1           Topic = "TimingDataF1"
	TimingStats            Topic = "TimingStats"
	TlaRcm                 Topic = "TlaRcm"
	TopThree               Topic = "TopThree"
	TrackStatus            Topic = "TrackStatus"
	TyreStintSeries        Topic = "TyreStintSeries"
	WeatherData            Topic = "WeatherData"
	WeatherDataSeries      Topic = "WeatherDataSeries"
)

var all = []Topic{
	ArchiveStatus, AudioStreams, CarData, ChampionshipPrediction,
	ContentStreams, CurrentTyres, DriverList, DriverRaceInfo, DriverScore,
	ExtrapolatedClock, Heartbeat, LapCount, LapSeries, PitLaneTimeCollection,
	Position, RaceControlMessages, SessionData, SessionInfo, SessionStatus,
	SPFeed, TeamRadio, TimingAppData, TimingData, TimingDataF1, TimingStats,
	TlaRcm, TopThree, TrackStatus, TyreStintSeries, WeatherData,
	WeatherDataSeries,
}

// Class tells how a topic's payload is encoded.
type Class uint8

const (
	// Plain topics carry a JSON value.
	Plain Class = iota
	// Binary topics carry base64 + raw deflate compressed JSON.
	Binary
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case Plain:
		return "PLAIN"
	case Binary:
		return "BINARY"
	default:
		return "UNKNOWN"
	}
}

// Class returns the payload class of the topic.
func (t Topic) Class() Class {
	if strings.HasSuffix(string(t), ".z") {
		return Binary
	}
	return Plain
}

// IsBinary reports whether the topic carries compressed payloads.
func (t Topic) IsBinary() bool {
	return t.Class() == Binary
}

// Known reports whether the topic is part of the known set.
func (t Topic) Known() bool {
	return slices.Contains(all, t)
}

// String returns the wire name of the topic.
func (t Topic) String() string {
	return string(t)
}

// Parse returns the topic with the given wire name.
// Matching is exact except that a missing ".z" suffix is accepted for
// binary topics ("CarData" resolves to CarData.z).
func Parse(name string) (Topic, error) {
	t := Topic(name)
	if t.Known() {
		return t, nil
	}
	if z := Topic(name + ".z"); z.Known() {
		return z, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTopic, name)
}

// ParseList parses every name and fails on the first unknown one.
func ParseList(names []string) ([]Topic, error) {
	out := make([]Topic, 0, len(names))
	for _, n := range names {
		t, err := Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// All returns every known topic in wire-name order.
func All() []Topic {
	return slices.Clone(all)
}

// DefaultSubscription returns the topic list a client subscribes to when
// none is configured.
func DefaultSubscription() []Topic {
	return []Topic{
		Heartbeat, CarData, Position, ExtrapolatedClock, TopThree,
		TimingStats, TimingAppData, WeatherData, TrackStatus, DriverList,
		RaceControlMessages, SessionInfo, SessionData, LapCount, TimingData,
		TeamRadio, PitLaneTimeCollection, ChampionshipPrediction,
	}
}

// Names returns the wire names of topics, in order.
func Names(topics []Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = string(t)
	}
	return out
}
