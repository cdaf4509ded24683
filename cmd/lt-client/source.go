package main

import (
	"sync"

	"github.com/livetiming/lt-go/pkg/archive"
	"github.com/livetiming/lt-go/pkg/connection"
	"github.com/livetiming/lt-go/pkg/dispatch"
	"github.com/livetiming/lt-go/pkg/state"
)

// source is what the console inspects: a live client or an archive replay.
type source interface {
	Status() string
	Snapshot() state.SessionState
	Stats() []stat
}

type stat struct {
	name  string
	value any
}

type liveSource struct {
	c *connection.Client
}

func (s liveSource) Status() string {
	st := s.c.Stats()
	if st.ConnectionID == "" {
		return st.State.String()
	}
	return st.State.String() + " (connection " + st.ConnectionID + ")"
}

func (s liveSource) Snapshot() state.SessionState { return s.c.Snapshot() }

func (s liveSource) Stats() []stat {
	st := s.c.Stats()
	out := []stat{
		{"state", st.State},
		{"message id", st.MessageID},
		{"frames", st.Frames},
		{"keep-alives", st.KeepAlives},
		{"envelopes", st.Envelopes},
		{"malformed frames", st.MalformedFrames},
		{"decode errors", st.DecodeErrors},
		{"reconnects", st.Reconnects},
		{"pings", st.KeepAlive.Pings},
		{"ping failures", st.KeepAlive.PingFailures},
	}
	if !st.KeepAlive.LastSeen.IsZero() {
		out = append(out, stat{"last frame", st.KeepAlive.LastSeen.Format("15:04:05.000")})
	}
	out = append(out, mergerStats(st.Merger)...)
	return append(out, dispatchStats(st.Dispatch)...)
}

type replaySource struct {
	session    string
	merger     *state.Merger
	dispatcher *dispatch.Dispatcher[state.Result]

	mu       sync.Mutex
	stats    archive.ReplayStats
	finished bool
}

func (s *replaySource) setStats(stats archive.ReplayStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	s.finished = true
}

func (s *replaySource) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return "replay finished: " + s.session
	}
	return "replaying " + s.session
}

func (s *replaySource) Snapshot() state.SessionState { return s.merger.Snapshot() }

func (s *replaySource) Stats() []stat {
	s.mu.Lock()
	out := []stat{{"session", s.session}}
	if s.finished {
		out = append(out,
			stat{"lines", s.stats.Lines},
			stat{"duration", s.stats.Duration},
		)
	}
	s.mu.Unlock()
	out = append(out, mergerStats(s.merger.Stats())...)
	return append(out, dispatchStats(s.dispatcher.Stats())...)
}

func mergerStats(m state.MergerStats) []stat {
	return []stat{
		{"snapshots", m.Snapshots},
		{"updates", m.Updates},
		{"partial", m.Partial},
		{"payload errors", m.DecodeErrors},
	}
}

func dispatchStats(d dispatch.Stats) []stat {
	out := []stat{
		{"dispatched", d.Dispatched},
		{"dropped", d.Dropped},
	}
	for _, sub := range d.Subscribers {
		out = append(out, stat{
			name:  "queue " + sub.ID,
			value: sub.Queued,
		})
	}
	return out
}
