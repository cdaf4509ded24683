package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/livetiming/lt-go/pkg/dispatch"
	"github.com/livetiming/lt-go/pkg/state"
	"github.com/livetiming/lt-go/pkg/telemetry"
)

// record is one output line.
type record struct {
	Time    time.Time          `json:"time"`
	Topic   string             `json:"topic"`
	Kind    string             `json:"kind"`
	Partial bool               `json:"partial,omitempty"`
	Value   state.Value        `json:"value,omitempty"`
	Samples []telemetry.Sample `json:"samples,omitempty"`
}

func newRecord(res state.Result) record {
	r := record{
		Time:    res.Timestamp.UTC(),
		Topic:   res.Topic.String(),
		Kind:    res.Kind.String(),
		Partial: res.Partial,
		Samples: res.Samples,
	}
	// Decoded samples replace the compressed blob.
	if len(res.Samples) == 0 {
		r.Value = res.Value
	}
	return r
}

// resultWriter writes results as JSON lines.
type resultWriter struct {
	enc     *json.Encoder
	written atomic.Uint64
}

func newResultWriter(w io.Writer) *resultWriter {
	return &resultWriter{enc: json.NewEncoder(w)}
}

// Write encodes one result. It is not safe for concurrent use.
func (w *resultWriter) Write(res state.Result) error {
	if err := w.enc.Encode(newRecord(res)); err != nil {
		return err
	}
	w.written.Add(1)
	return nil
}

func (w *resultWriter) count() uint64 {
	return w.written.Load()
}

// consume writes results until the subscription closes or ctx ends.
func (w *resultWriter) consume(ctx context.Context, sub *dispatch.Subscription[state.Result], logger *slog.Logger) {
	var failed bool
	for res := range sub.All(ctx) {
		if err := w.Write(res); err != nil && !failed {
			// Keep draining so the feed is unaffected; report once.
			failed = true
			logger.Error("writing output", "error", err)
		}
	}
	if n := sub.Dropped(); n > 0 {
		logger.Warn("output fell behind, events were dropped", "count", n)
	}
}
