// Command lt-client streams the live-timing feed as JSON lines.
//
// It negotiates with the hub, subscribes to the configured topics and
// writes one JSON object per merged envelope to stdout or to --output.
// Snapshots always precede updates for a topic, also after a reconnect.
//
// Usage:
//
//	lt-client [flags]
//	lt-client list meetings YEAR
//	lt-client list sessions YEAR MEETING
//	lt-client list topics YEAR MEETING SESSION
//
// The list commands browse the archive. Meetings and sessions are numbered
// from 1 in the order the archive lists them; --archive accepts the same
// numbers as YEAR/MEETING/SESSION, or a session key as YEAR/KEY.
//
// Flags:
//
//	--config string       Configuration file (YAML, or JSON with comments)
//	--hub string          Hub base URL
//	-t, --topic strings   Topic to subscribe to (repeatable)
//	--log-level string    Log level: debug, info, warn, error
//	--log-format string   Log format: auto, text, json
//	--log-file string     Write logs to a rotating file instead of stderr
//	--capture string      Record protocol traffic to a capture file (.zst compresses)
//	-o, --output string   Write events to this file instead of stdout
//	-i, --interactive     Open a console to inspect the session
//	--no-decode           Keep binary topics as base64 instead of decoding samples
//	--check-status        Print whether the hub is broadcasting and exit
//	--archive string      Replay an archived session: path, YEAR/MEETING/SESSION, YEAR/KEY or "latest"
//	--speed float         Archive replay speed, 0 for no pauses
//
// Examples:
//
//	# Race control and track status only
//	lt-client -t RaceControlMessages -t TrackStatus
//
//	# Record a session while watching it in the console
//	lt-client --capture session.ltlog.zst --interactive
//
//	# Replay the most recent archived session ten times faster
//	lt-client --archive latest --speed 10 -o race.jsonl
//
//	# Find the second session of the first meeting of 2026 and replay it
//	lt-client list sessions 2026 1
//	lt-client --archive 2026/1/2
//
// Exit status is 0 after a graceful stop (SIGINT, SIGTERM or "quit"), 1
// when the hub refuses the negotiation or the subscription, and 2 for
// usage errors.
package main

import (
	"errors"
	"fmt"
	"os"
)

// exitError carries a process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// ExitCode returns the process exit status.
func (e *exitError) ExitCode() int { return e.code }

func usageError(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var coder interface{ ExitCode() int }
		code := 1
		if errors.As(err, &coder) {
			code = coder.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "lt-client: %v\n", err)
		os.Exit(code)
	}
}
