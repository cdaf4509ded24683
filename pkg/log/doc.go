// Package log provides feed capture logging.
//
// This package defines the Logger interface and Event types for recording
// what the client exchanged with the hub at three layers (transport,
// protocol, feed). It is separate from operational logging (slog) - a
// capture is a complete machine-readable trace for debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.Capture = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to a compressed binary file
//	cfg.Capture, _ = log.NewFileLogger("/var/log/lt/session.ltlog.zst")
//
//	// Both: use MultiLogger
//	cfg.Capture = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Transport: raw websocket text frames (FrameEvent)
//   - Protocol: negotiate/subscribe/start/ping exchanges (ControlMsgEvent)
//   - Feed: merged envelopes (EnvelopeEvent) and session checkpoints
//     (SnapshotEvent)
//
// State changes and errors have dedicated event types.
//
// # File Format
//
// Capture files are a sequence of CBOR-encoded events with the .ltlog
// extension, optionally zstd-compressed (.ltlog.zst). The lt-log tool
// views, filters, exports and summarises them.
package log
