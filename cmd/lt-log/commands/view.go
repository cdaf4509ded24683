// Package commands implements the lt-log CLI commands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/livetiming/lt-go/pkg/log"
)

// ViewOptions controls the view command.
type ViewOptions struct {
	Filter log.Filter

	// Follow keeps reading as the capture grows.
	Follow bool

	// Payloads prints envelope payloads and frame text in full.
	Payloads bool
}

// maxInline is how much of a payload is printed without --payloads.
const maxInline = 160

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event, full bool) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)
	dir := event.Direction.String()

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Envelope != nil:
		typeLabel = event.Envelope.Kind.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.ControlMsg != nil:
		typeLabel = event.ControlMsg.Type.String()
	case event.Snapshot != nil:
		typeLabel = "Snapshot"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	// Use CTRL for control messages in header
	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	header := fmt.Sprintf("%s [conn:%s] %-3s %s %s", ts, connID, dir, layerStr, typeLabel)
	if event.Topic != "" {
		header += " " + event.Topic
	}
	if event.Source == log.SourceArchive {
		header += " (archive)"
	}
	fmt.Fprintln(w, header)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame, full)
	case event.Envelope != nil:
		formatEnvelopeDetails(w, event, full)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.ControlMsg != nil:
		if event.ControlMsg.Detail != "" {
			fmt.Fprintf(w, "  %s\n", event.ControlMsg.Detail)
		}
	case event.Snapshot != nil:
		formatSnapshotDetails(w, event.Snapshot)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func clip(s string, full bool) string {
	if full || len(s) <= maxInline {
		return s
	}
	return s[:maxInline] + "..."
}

// formatFrameDetails writes frame-specific details. Frames are JSON text.
func formatFrameDetails(w io.Writer, frame *log.FrameEvent, full bool) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", clip(string(frame.Data), full))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatEnvelopeDetails(w io.Writer, event log.Event, full bool) {
	env := event.Envelope
	if event.MessageID != "" {
		fmt.Fprintf(w, "  MessageID: %s\n", event.MessageID)
	}
	if env.HubTime != nil {
		fmt.Fprintf(w, "  HubTime: %s\n", env.HubTime.UTC().Format(time.RFC3339Nano))
	}
	if env.Partial {
		fmt.Fprintln(w, "  Partial: update before snapshot")
	}
	if env.Samples > 0 {
		fmt.Fprintf(w, "  Samples: %d\n", env.Samples)
	}
	if env.Payload != nil {
		payloadJSON, err := json.Marshal(env.Payload)
		if err == nil {
			fmt.Fprintf(w, "  Payload: %s\n", clip(string(payloadJSON), full))
		}
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatSnapshotDetails lists the checkpointed topics.
func formatSnapshotDetails(w io.Writer, snap *log.SnapshotEvent) {
	names := make([]string, 0, len(snap.Topics))
	for name := range snap.Topics {
		names = append(names, name)
	}
	slices.Sort(names)
	fmt.Fprintf(w, "  Topics (%d): %s\n", len(names), strings.Join(names, ", "))
	if snap.Envelopes > 0 {
		fmt.Fprintf(w, "  Envelopes since last: %d\n", snap.Envelopes)
	}
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "protocol":
		return log.LayerProtocol, nil
	case "feed":
		return log.LayerFeed, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, protocol, or feed)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	case "snapshot":
		return log.CategorySnapshot, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, error, or snapshot)", s)
	}
}

// ParseSourceFlag parses "live" or "archive".
func ParseSourceFlag(s string) (log.Source, error) {
	switch strings.ToLower(s) {
	case "live":
		return log.SourceLive, nil
	case "archive":
		return log.SourceArchive, nil
	default:
		return 0, fmt.Errorf("invalid source: %s (must be live or archive)", s)
	}
}

// RunView prints the capture. With Follow set it keeps printing events
// as they are appended until ctx ends.
func RunView(ctx context.Context, path string, opts ViewOptions, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if opts.Follow {
		return reader.Follow(ctx, func(event log.Event) error {
			formatEvent(output, event, opts.Payloads)
			return nil
		})
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event, opts.Payloads)
	}
}
