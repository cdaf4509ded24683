package archive

import (
	"bufio"
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/livetiming/lt-go/pkg/state"
	"github.com/livetiming/lt-go/pkg/topic"
)

// maxLineSize bounds one stream line. Telemetry lines carry a few tens of
// kilobytes of base64.
const maxLineSize = 4 << 20

// Line is one recorded hub message.
type Line struct {
	Topic topic.Topic

	// Offset is the time since the start of the recording.
	Offset time.Duration

	Payload state.Value
}

// LineError reports a stream line that could not be parsed.
type LineError struct {
	Topic topic.Topic
	Line  int
	Err   error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s.jsonStream line %d: %v", e.Topic, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ParseStream reads a topic's stream file. A leading byte order mark and
// blank lines are ignored.
func ParseStream(r io.Reader, t topic.Topic) ([]Line, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	var (
		lines []Line
		n     int
	)
	for sc.Scan() {
		n++
		raw := sc.Bytes()
		if n == 1 {
			raw = bytes.TrimPrefix(raw, byteOrderMark)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		line, err := parseLine(raw)
		if err != nil {
			return nil, &LineError{Topic: t, Line: n, Err: err}
		}
		line.Topic = t
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s.jsonStream: %w", t, err)
	}
	return lines, nil
}

func parseLine(raw []byte) (Line, error) {
	i := bytes.IndexFunc(raw, func(r rune) bool {
		return (r < '0' || r > '9') && r != ':' && r != '.'
	})
	if i <= 0 {
		return Line{}, errors.New("missing offset or payload")
	}
	offset, err := parseClock(string(raw[:i]))
	if err != nil {
		return Line{}, err
	}
	payload, err := state.ParseValue(raw[i:])
	if err != nil {
		return Line{}, err
	}
	return Line{Offset: offset, Payload: payload}, nil
}

// parseClock parses "HH:MM:SS" with an optional fraction of a second.
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad offset %q", s)
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789.") != "" {
			return 0, fmt.Errorf("bad offset %q", s)
		}
	}
	d, err := time.ParseDuration(parts[0] + "h" + parts[1] + "m" + parts[2] + "s")
	if err != nil {
		return 0, fmt.Errorf("bad offset %q", s)
	}
	return d, nil
}

// Merge interleaves topic streams by offset. Lines with equal offsets keep
// the order of the arguments.
func Merge(streams ...[]Line) []Line {
	var total int
	for _, s := range streams {
		total += len(s)
	}
	out := make([]Line, 0, total)
	for _, s := range streams {
		out = append(out, s...)
	}
	slices.SortStableFunc(out, func(a, b Line) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	return out
}
