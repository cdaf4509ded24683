package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/livetiming/lt-go/pkg/log"
)

// RunExport writes the matching events to w as jsonl or csv.
func RunExport(path, format string, filter log.Filter, w io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

// eventType names the payload kind of an event for tabular output.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "frame"
	case event.Envelope != nil:
		return event.Envelope.Kind.String()
	case event.StateChange != nil:
		return "state"
	case event.ControlMsg != nil:
		return event.ControlMsg.Type.String()
	case event.Snapshot != nil:
		return "snapshot"
	case event.Error != nil:
		return "error"
	default:
		return "unknown"
	}
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "connection_id", "source", "direction", "layer", "category", "topic", "type", "message_id", "size"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		size := ""
		if event.Frame != nil {
			size = strconv.Itoa(event.Frame.Size)
		}
		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.ConnectionID,
			event.Source.String(),
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.Topic,
			eventType(event),
			event.MessageID,
			size,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
