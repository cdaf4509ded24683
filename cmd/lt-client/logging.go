package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"
	"golang.org/x/term"

	"github.com/livetiming/lt-go/pkg/config"
)

// newLogger builds the operational logger. With a log file configured the
// output goes to a rotating file as JSON; otherwise to w, as text when w
// is a terminal or the console and as JSON when it is redirected.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	closer := func() {}
	format := cfg.Format
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w = lj
		closer = func() { _ = lj.Close() }
		if format == config.FormatAuto {
			format = config.FormatJSON
		}
	}
	if format == config.FormatAuto {
		format = config.FormatText
		if f, ok := w.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
			format = config.FormatJSON
		}
	}

	var handler slog.Handler
	if format == config.FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closer, nil
}
