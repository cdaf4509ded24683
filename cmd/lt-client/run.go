package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/livetiming/lt-go/pkg/archive"
	"github.com/livetiming/lt-go/pkg/config"
	"github.com/livetiming/lt-go/pkg/connection"
	"github.com/livetiming/lt-go/pkg/dispatch"
	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/state"
)

// errOffline is returned by --check-status when no session is live.
var errOffline = errors.New("hub is not broadcasting")

type options struct {
	configPath  string
	hubURL      string
	topics      []string
	logLevel    string
	logFormat   string
	logFile     string
	capture     string
	output      string
	interactive bool
	noDecode    bool
	checkStatus bool
	archive     string
	speed       float64
	list        *listQuery
}

// parseArgs parses the command line and resolves the configuration: file,
// then environment, then flags.
func parseArgs(args []string, stderr io.Writer) (*options, *config.Config, error) {
	var opts options
	fs := pflag.NewFlagSet("lt-client", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "configuration file (YAML, or JSON with comments)")
	fs.StringVar(&opts.hubURL, "hub", "", "hub base URL")
	fs.StringSliceVarP(&opts.topics, "topic", "t", nil, "topic to subscribe to (repeatable)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&opts.logFormat, "log-format", "", "log format: auto, text, json")
	fs.StringVar(&opts.logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	fs.StringVar(&opts.capture, "capture", "", "record protocol traffic to a capture file (.zst compresses)")
	fs.StringVarP(&opts.output, "output", "o", "", "write events to this file instead of stdout")
	fs.BoolVarP(&opts.interactive, "interactive", "i", false, "open a console to inspect the session")
	fs.BoolVar(&opts.noDecode, "no-decode", false, "keep binary topics as base64")
	fs.BoolVar(&opts.checkStatus, "check-status", false, "print whether the hub is broadcasting and exit")
	fs.StringVar(&opts.archive, "archive", "", `replay an archived session: a path, YEAR/MEETING/SESSION, YEAR/KEY or "latest"`)
	fs.Float64Var(&opts.speed, "speed", 0, "archive replay speed, 0 for no pauses (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lt-client [flags]\n       lt-client list meetings YEAR | sessions YEAR MEETING | topics YEAR MEETING SESSION\n\nFlags:\n%s", fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, nil, pflag.ErrHelp
		}
		return nil, nil, usageError("%v", err)
	}
	if fs.NArg() > 0 {
		if fs.Arg(0) != "list" {
			return nil, nil, usageError("unexpected argument: %s", fs.Arg(0))
		}
		q, err := parseListQuery(fs.Args()[1:])
		if err != nil {
			return nil, nil, usageError("%v", err)
		}
		opts.list = q
	}

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, nil, usageError("%v", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	if fs.Changed("hub") {
		cfg.Hub.URL = opts.hubURL
	}
	if fs.Changed("topic") {
		cfg.Topics = opts.topics
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if fs.Changed("log-file") {
		cfg.Logging.File = opts.logFile
	}
	if fs.Changed("capture") {
		cfg.Capture.Path = opts.capture
	}
	if fs.Changed("speed") {
		cfg.Archive.Speed = opts.speed
	}
	if opts.noDecode {
		cfg.Dispatch.SkipTelemetry = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, usageError("%v", err)
	}
	return &opts, cfg, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, cfg, err := parseArgs(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logOut := stderr
	var con *console
	if opts.interactive && !opts.checkStatus && opts.list == nil {
		con, err = newConsole()
		if err != nil {
			return err
		}
		defer con.Close()
		logOut = con.Stderr()
	}

	logger, closeLog, err := newLogger(cfg.Logging, logOut)
	if err != nil {
		return usageError("%v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ac, err := cfg.ArchiveClient()
	if err != nil {
		return err
	}

	if opts.checkStatus {
		return checkStatus(ctx, ac, stdout)
	}
	if opts.list != nil {
		return listArchive(ctx, ac, opts.list, stdout)
	}

	capture, closeCapture, err := openCapture(cfg.Capture.Path, logger)
	if err != nil {
		return err
	}
	defer closeCapture()

	out := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	} else if opts.interactive {
		// The console owns the terminal.
		out = io.Discard
	}
	writer := newResultWriter(out)

	if opts.archive != "" {
		return runArchive(ctx, cfg, ac, opts.archive, con, writer, logger, capture)
	}
	return runLive(ctx, cfg, ac, con, writer, logger, capture)
}

func checkStatus(ctx context.Context, ac *archive.Client, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	status, err := ac.StreamingStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, status)
	if status != archive.StatusAvailable {
		return errOffline
	}
	return nil
}

// openCapture opens the capture file. The returned logger is nil when
// capture is disabled.
func openCapture(path string, logger *slog.Logger) (log.Logger, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	fl, err := log.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("capture: %w", err)
	}
	logger.Info("capturing protocol traffic", "path", path)
	return fl, func() {
		if n := fl.Dropped(); n > 0 {
			logger.Warn("capture events dropped", "count", n)
		}
		if err := fl.Close(); err != nil {
			logger.Warn("closing capture", "error", err)
		}
	}, nil
}

func runLive(ctx context.Context, cfg *config.Config, ac *archive.Client, con *console, writer *resultWriter, logger *slog.Logger, capture log.Logger) error {
	// Streaming status is advisory: the hub accepts subscriptions while
	// offline and simply sends nothing.
	statusCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if status, err := ac.StreamingStatus(statusCtx); err != nil {
		logger.Debug("streaming status unavailable", "error", err)
	} else if status != archive.StatusAvailable {
		logger.Warn("no session is being broadcast", "status", status)
	}
	cancel()

	cc, err := cfg.ClientConfig(logger, capture)
	if err != nil {
		return usageError("%v", err)
	}
	cc.OnDrop = func(e dispatch.DropEvent) {
		logger.Debug("consumer dropped event", "event", e)
	}
	client, err := connection.NewClient(cc)
	if err != nil {
		return usageError("%v", err)
	}
	sub, err := client.Subscribe(0)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		writer.consume(ctx, sub, logger)
	}()

	if con != nil {
		go con.Run(ctx, liveSource{client}, client.Stop)
	}

	runErr := client.Run(ctx)
	<-done

	var nerr *connection.NegotiationError
	var serr *connection.SubscriptionError
	switch {
	case runErr == nil:
		logger.Info("stopped", "events", writer.count())
		return nil
	case errors.As(runErr, &nerr), errors.As(runErr, &serr):
		return &exitError{code: 1, err: runErr}
	default:
		return runErr
	}
}

func runArchive(ctx context.Context, cfg *config.Config, ac *archive.Client, sessionArg string, con *console, writer *resultWriter, logger *slog.Logger, capture log.Logger) error {
	cc, err := cfg.ClientConfig(logger, capture)
	if err != nil {
		return usageError("%v", err)
	}

	session, start, err := resolveSession(ctx, ac, sessionArg, time.Now())
	if err != nil {
		return err
	}
	lines, missing, err := ac.Session(ctx, session, cc.Topics)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		logger.Info("topics not recorded in this session", "topics", missing)
	}

	merger := state.NewMerger(state.MergerConfig{Logger: logger, SkipTelemetry: cc.SkipTelemetry})
	disp := dispatch.New[state.Result](dispatch.Config{Logger: logger})
	sub, err := disp.Subscribe("output", cc.DispatchCapacity)
	if err != nil {
		return err
	}

	replayer, err := archive.NewReplayer(archive.ReplayConfig{
		Merger:     merger,
		Dispatcher: disp,
		Start:      start,
		Speed:      cfg.Archive.Speed,
		Logger:     logger,
		Capture:    capture,
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		writer.consume(ctx, sub, logger)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src := &replaySource{session: session, merger: merger, dispatcher: disp}
	if con != nil {
		go con.Run(ctx, src, cancel)
	}

	stats, err := replayer.Replay(ctx, lines)
	src.setStats(stats)
	disp.Close()
	<-done

	if err != nil && ctx.Err() == nil {
		return err
	}
	if con != nil && err == nil {
		// Keep the console open on the final state until the user quits.
		<-ctx.Done()
	}
	logger.Info("replay stopped", "events", writer.count())
	return nil
}

// resolveSession maps the --archive argument to a session path and its
// start time. Positions are those printed by "list"; a path is used as is.
func resolveSession(ctx context.Context, ac *archive.Client, arg string, now time.Time) (string, time.Time, error) {
	if arg == "latest" {
		return latestSession(ctx, ac, now)
	}
	nums, ok := sessionNumbers(arg)
	if !ok {
		return arg, time.Time{}, nil
	}

	idx, err := ac.YearIndex(ctx, nums[0])
	if err != nil {
		return "", time.Time{}, err
	}
	var (
		m archive.Meeting
		s archive.Session
	)
	if len(nums) == 2 {
		var found bool
		if m, s, found = idx.FindSession(nums[1]); !found {
			return "", time.Time{}, fmt.Errorf("%w: key %d in %d", archive.ErrNoSession, nums[1], nums[0])
		}
	} else if m, s, err = idx.SessionAt(nums[1], nums[2]); err != nil {
		return "", time.Time{}, err
	}
	start, err := s.Start()
	if err != nil {
		return "", time.Time{}, err
	}
	return idx.SessionPath(m, s), start, nil
}

func latestSession(ctx context.Context, ac *archive.Client, now time.Time) (string, time.Time, error) {
	for _, year := range []int{now.Year(), now.Year() - 1} {
		idx, err := ac.YearIndex(ctx, year)
		if errors.Is(err, archive.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", time.Time{}, err
		}
		if _, s, ok := idx.LastSession(now); ok {
			start, err := s.Start()
			if err != nil {
				return "", time.Time{}, err
			}
			return s.Path, start, nil
		}
	}
	return "", time.Time{}, errors.New("no archived session found")
}
