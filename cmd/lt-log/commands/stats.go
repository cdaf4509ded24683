package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/livetiming/lt-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Topics            map[string]*TopicStats
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// TopicStats counts the envelopes seen for one topic.
type TopicStats struct {
	Snapshots int
	Updates   int
	Partial   int
	Samples   int
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen      time.Time
	LastSeen       time.Time
	Events         int
	Frames         int
	Bytes          int
	KeepAlives     int
	Source         log.Source
	SnapshotCount  int
	LastSnapshotAt time.Time
}

// RunStats analyzes the capture and prints statistics.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Topics:            make(map[string]*TopicStats),
		Connections:       make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Source:    event.Source,
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}

	switch {
	case event.Frame != nil:
		conn.Frames++
		conn.Bytes += event.Frame.Size
	case event.ControlMsg != nil && event.ControlMsg.Type == log.ControlMsgKeepAlive:
		conn.KeepAlives++
	case event.Envelope != nil:
		ts, ok := s.Topics[event.Topic]
		if !ok {
			ts = &TopicStats{}
			s.Topics[event.Topic] = ts
		}
		if event.Envelope.Kind == log.EnvelopeSnapshot {
			ts.Snapshots++
		} else {
			ts.Updates++
		}
		if event.Envelope.Partial {
			ts.Partial++
		}
		ts.Samples += event.Envelope.Samples
	case event.Snapshot != nil:
		conn.SnapshotCount++
		if event.Timestamp.After(conn.LastSnapshotAt) {
			conn.LastSnapshotAt = event.Timestamp
		}
	case event.Error != nil:
		s.Errors++
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Live Timing Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerProtocol, log.LayerFeed} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError, log.CategorySnapshot} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Topics) > 0 {
		names := make([]string, 0, len(stats.Topics))
		for name := range stats.Topics {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "Topics: %d\n", len(names))
		for _, name := range names {
			ts := stats.Topics[name]
			fmt.Fprintf(w, "  %-24s %d snapshots, %d updates", name, ts.Snapshots, ts.Updates)
			if ts.Partial > 0 {
				fmt.Fprintf(w, ", %d partial", ts.Partial)
			}
			if ts.Samples > 0 {
				fmt.Fprintf(w, ", %d samples", ts.Samples)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s, %d events, duration %s\n",
				shortenConnID(c.id), c.stats.Source, c.stats.Events, duration)
			if c.stats.Frames > 0 {
				fmt.Fprintf(w, "           Frames: %d (%d bytes), keep-alives: %d\n",
					c.stats.Frames, c.stats.Bytes, c.stats.KeepAlives)
			}
			if c.stats.SnapshotCount > 0 {
				fmt.Fprintf(w, "           Snapshots: %d (last: %s)\n",
					c.stats.SnapshotCount, c.stats.LastSnapshotAt.Format(time.RFC3339))
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
