package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/topic"
)

// FilterOptions holds the filter flags shared by the commands.
type FilterOptions struct {
	ConnID    string
	Topic     string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
	Source    string
}

// Build converts the flag values into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{ConnectionID: o.ConnID}

	if o.Topic != "" {
		t, err := topic.Parse(o.Topic)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Topic = t.String()
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if o.Layer != "" {
		l, err := ParseLayerFlag(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}

	if o.Direction != "" {
		d, err := ParseDirectionFlag(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}

	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}

	if o.Source != "" {
		s, err := ParseSourceFlag(o.Source)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Source = &s
	}
	return filter, nil
}

// RunFilter copies the events matching filter to a new capture file. The
// output is compressed when its name ends in .zst.
func RunFilter(path, outPath string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	out, err := log.NewFileLogger(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Close()
			return fmt.Errorf("failed to read event: %w", err)
		}

		out.Log(event)
		count++
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	if n := out.Dropped(); n > 0 {
		return fmt.Errorf("%d events could not be written to %s", n, outPath)
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, outPath)
	return nil
}
