package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/livetiming/lt-go/pkg/dispatch"
	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/state"
	"github.com/livetiming/lt-go/pkg/topic"
)

// ErrNoMerger is returned by NewReplayer without a merger or dispatcher.
var ErrNoMerger = errors.New("replayer needs a merger and a dispatcher")

// ReplayConfig configures a Replayer.
type ReplayConfig struct {
	Merger     *state.Merger
	Dispatcher *dispatch.Dispatcher[state.Result]

	// Start is the wall-clock time of offset zero. Envelope timestamps
	// are Start plus the line offset (default: the replay start).
	Start time.Time

	// Speed scales the pacing between lines: 1 replays in real time, 10
	// ten times faster. Zero replays without pauses.
	Speed float64

	// Logger for operational messages. Nil disables logging.
	Logger *slog.Logger

	// Capture records every applied envelope with Source ARCHIVE. Nil
	// disables capture.
	Capture log.Logger
}

// ReplayStats summarizes a replay.
type ReplayStats struct {
	Lines        int
	Snapshots    int
	Updates      int
	DecodeErrors int
	Duration     time.Duration
}

// Replayer pushes archived lines through a merger to consumers.
type Replayer struct {
	cfg    ReplayConfig
	logger *slog.Logger
	connID string

	timeNow func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewReplayer creates a Replayer.
func NewReplayer(cfg ReplayConfig) (*Replayer, error) {
	if cfg.Merger == nil || cfg.Dispatcher == nil {
		return nil, ErrNoMerger
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Replayer{
		cfg:     cfg,
		logger:  logger,
		connID:  log.NewConnectionID(),
		timeNow: time.Now,
		sleep:   sleepCtx,
	}, nil
}

// Replay applies lines in order. The merger is reset first and the first
// line of every topic is applied as a snapshot. Replay returns ctx's error
// when interrupted.
func (r *Replayer) Replay(ctx context.Context, lines []Line) (ReplayStats, error) {
	var stats ReplayStats
	if len(lines) == 0 {
		return stats, nil
	}

	r.cfg.Merger.Reset(topicsOf(lines)...)

	begin := r.timeNow()
	start := r.cfg.Start
	if start.IsZero() {
		start = begin
	}
	first := lines[0].Offset
	seen := make(map[topic.Topic]bool)

	r.logger.Info("replay started", "lines", len(lines), "span", lines[len(lines)-1].Offset-first)

	for _, line := range lines {
		if r.cfg.Speed > 0 {
			due := begin.Add(time.Duration(float64(line.Offset-first) / r.cfg.Speed))
			if err := r.sleep(ctx, due.Sub(r.timeNow())); err != nil {
				stats.Duration = r.timeNow().Sub(begin)
				return stats, err
			}
		} else if err := ctx.Err(); err != nil {
			stats.Duration = r.timeNow().Sub(begin)
			return stats, err
		}

		env := state.Envelope{
			Topic:      line.Topic,
			Kind:       state.Update,
			Payload:    line.Payload,
			ReceivedAt: start.Add(line.Offset),
		}
		if !seen[line.Topic] {
			seen[line.Topic] = true
			env.Kind = state.Snapshot
			stats.Snapshots++
		} else {
			stats.Updates++
		}
		stats.Lines++

		res, err := r.cfg.Merger.Apply(env)
		if err != nil {
			// Undecodable telemetry still reaches consumers without samples.
			stats.DecodeErrors++
		}
		r.capture(env, res)
		r.cfg.Dispatcher.Dispatch(res)
	}

	stats.Duration = r.timeNow().Sub(begin)
	r.logger.Info("replay finished", "lines", stats.Lines, "decode_errors", stats.DecodeErrors, "took", stats.Duration)
	return stats, nil
}

func (r *Replayer) capture(env state.Envelope, res state.Result) {
	if r.cfg.Capture == nil {
		return
	}
	ev := &log.EnvelopeEvent{
		Kind:    log.EnvelopeUpdate,
		Payload: env.Payload,
		Samples: len(res.Samples),
	}
	if env.Kind == state.Snapshot {
		ev.Kind = log.EnvelopeSnapshot
	}
	r.cfg.Capture.Log(log.Event{
		Timestamp:    env.ReceivedAt,
		ConnectionID: r.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerFeed,
		Category:     log.CategoryMessage,
		Source:       log.SourceArchive,
		Topic:        string(env.Topic),
		Envelope:     ev,
	})
}

func topicsOf(lines []Line) []topic.Topic {
	seen := make(map[topic.Topic]bool)
	var out []topic.Topic
	for _, l := range lines {
		if !seen[l.Topic] {
			seen[l.Topic] = true
			out = append(out, l.Topic)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
