package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes capture events to an slog.Logger.
// Useful for development when you want to see feed traffic in the console.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given
// slog.Logger at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the adapter logging at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, a.level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Source != SourceLive {
		attrs = append(attrs, slog.String("source", event.Source.String()))
	}
	if event.Topic != "" {
		attrs = append(attrs, slog.String("topic", event.Topic))
	}
	if event.MessageID != "" {
		attrs = append(attrs, slog.String("msg_id", event.MessageID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Envelope != nil:
		attrs = append(attrs, slog.String("kind", event.Envelope.Kind.String()))
		if event.Envelope.Samples > 0 {
			attrs = append(attrs, slog.Int("samples", event.Envelope.Samples))
		}
		if event.Envelope.Partial {
			attrs = append(attrs, slog.Bool("partial", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.ControlMsg != nil:
		attrs = append(attrs, slog.String("ctrl_type", event.ControlMsg.Type.String()))
		if event.ControlMsg.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.ControlMsg.Detail))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	case event.Snapshot != nil:
		attrs = append(attrs,
			slog.Int("topics", len(event.Snapshot.Topics)),
			slog.Int("envelopes", event.Snapshot.Envelopes),
		)
	}

	a.logger.LogAttrs(ctx, a.level, "feed", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
