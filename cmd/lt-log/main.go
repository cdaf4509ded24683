// Command lt-log views and analyzes live-timing capture files.
//
// Captures are written by lt-client --capture (feed.ltlog, or
// feed.ltlog.zst for a compressed capture).
//
// Usage:
//
//	lt-log <command> [flags] <file.ltlog>
//
// Commands:
//
//	view     View capture in human-readable format
//	export   Export capture to JSON lines or CSV
//	filter   Filter capture and write to new file
//	stats    Show statistics about the capture
//	state    Print the session state recorded in the capture
//
// Examples:
//
//	# Watch a capture while lt-client is writing it
//	lt-log view --follow feed.ltlog
//
//	# Only race control envelopes
//	lt-log view --topic RaceControlMessages feed.ltlog.zst
//
//	# Export feed events to CSV
//	lt-log export --format csv --layer feed -o feed.csv feed.ltlog
//
//	# Keep one connection and save it compressed
//	lt-log filter --conn-id 3f2a9c1e-... -o conn.ltlog.zst feed.ltlog
//
//	# Track status as it was at the restart
//	lt-log state --at 2026-03-15T14:32:00Z --topic TrackStatus feed.ltlog
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/livetiming/lt-go/cmd/lt-log/commands"
	"github.com/livetiming/lt-go/pkg/log"
)

const usage = `lt-log - Live Timing Capture Analyzer

Usage:
  lt-log <command> [flags] <file.ltlog>

Commands:
  view     View capture in human-readable format
  export   Export capture to JSON lines or CSV
  filter   Filter capture and write to new file
  stats    Show statistics about the capture
  state    Print the session state recorded in the capture

Use "lt-log <command> --help" for more information about a command.
`

// errUsage marks errors that are reported with exit status 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: command required", errUsage)
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "view":
		return runView(ctx, args, stdout, stderr)
	case "export":
		return runExport(args, stdout, stderr)
	case "filter":
		return runFilter(args, stdout, stderr)
	case "stats":
		return runStats(args, stdout, stderr)
	case "state":
		return runState(args, stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %s", errUsage, cmd)
	}
}

// newFlagSet returns a flag set whose usage text lists the flags after a
// one-line description.
func newFlagSet(name, summary, synopsis string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "lt-log %s - %s\n\nUsage:\n  lt-log %s\n\nFlags:\n%s",
			name, summary, synopsis, fs.FlagUsages())
	}
	return fs
}

func addFilterFlags(fs *pflag.FlagSet, opts *commands.FilterOptions) {
	fs.StringVar(&opts.ConnID, "conn-id", "", "filter by connection ID")
	fs.StringVar(&opts.Topic, "topic", "", "filter by topic")
	fs.StringVar(&opts.TimeStart, "time-start", "", "filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "filter by layer (transport, protocol, feed)")
	fs.StringVar(&opts.Direction, "direction", "", "filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "filter by category (message, control, state, error, snapshot)")
	fs.StringVar(&opts.Source, "source", "", "filter by source (live, archive)")
}

// parse parses args and returns the single capture path.
func parse(fs *pflag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return "", fmt.Errorf("%w: exactly one capture file required", errUsage)
	}
	return fs.Arg(0), nil
}

func buildFilter(opts commands.FilterOptions) (log.Filter, error) {
	f, err := opts.Build()
	if err != nil {
		return log.Filter{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	return f, nil
}

func runView(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("view", "View capture in human-readable format", "view [flags] <file.ltlog>", stderr)
	var (
		fo   commands.FilterOptions
		opts commands.ViewOptions
	)
	addFilterFlags(fs, &fo)
	fs.BoolVarP(&opts.Follow, "follow", "f", false, "keep printing events as they are appended")
	fs.BoolVar(&opts.Payloads, "payloads", false, "print payloads in full")

	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	filter, err := buildFilter(fo)
	if err != nil {
		return err
	}
	opts.Filter = filter
	return commands.RunView(ctx, path, opts, stdout)
}

func runExport(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("export", "Export capture to JSON lines or CSV", "export [flags] <file.ltlog>", stderr)
	var fo commands.FilterOptions
	addFilterFlags(fs, &fo)
	format := fs.String("format", "jsonl", "output format (jsonl, csv)")
	output := fs.StringP("output", "o", "", "output file (default: stdout)")

	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	filter, err := buildFilter(fo)
	if err != nil {
		return err
	}

	w := stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return commands.RunExport(path, *format, filter, w)
}

func runFilter(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("filter", "Filter capture and write to new file", "filter [flags] -o <out.ltlog> <file.ltlog>", stderr)
	var fo commands.FilterOptions
	addFilterFlags(fs, &fo)
	output := fs.StringP("output", "o", "", "output file, .zst compresses (required)")

	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		fs.Usage()
		return fmt.Errorf("%w: output file (-o) required", errUsage)
	}
	filter, err := buildFilter(fo)
	if err != nil {
		return err
	}
	return commands.RunFilter(path, *output, filter, stdout)
}

func runStats(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("stats", "Show statistics about the capture", "stats [flags] <file.ltlog>", stderr)
	var fo commands.FilterOptions
	addFilterFlags(fs, &fo)

	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	filter, err := buildFilter(fo)
	if err != nil {
		return err
	}
	return commands.RunStats(path, filter, stdout)
}

func runState(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("state", "Print the session state recorded in the capture", "state [flags] <file.ltlog>", stderr)
	at := fs.String("at", "", "reconstruct the state at this time (RFC3339, default: end of capture)")
	topicName := fs.String("topic", "", "print only this topic")

	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	opts := commands.StateOptions{Topic: *topicName}
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("%w: invalid --at: %v", errUsage, err)
		}
		opts.At = t
	}
	return commands.RunState(path, opts, stdout)
}
