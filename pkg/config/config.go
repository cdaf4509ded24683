// Package config loads client configuration from a YAML file.
//
// A configuration file only needs the settings it changes; everything else
// keeps the value from Default. Files ending in .json or .jsonc are read
// as JSON with comments, which YAML accepts once the comments are
// stripped. Unknown keys are rejected so that typos surface immediately.
//
//	hub:
//	  url: https://livetiming.formula1.com/signalr
//	topics: [TimingData, Position.z, RaceControlMessages]
//	reconnect:
//	  initial: 1s
//	  max: 30s
//	logging:
//	  level: debug
//	  file: /var/log/lt-client.log
//
// The environment variables LT_HUB_URL, LT_TOPICS and LT_LOG_LEVEL
// override the file when ApplyEnv is called.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/livetiming/lt-go/pkg/archive"
	"github.com/livetiming/lt-go/pkg/connection"
	"github.com/livetiming/lt-go/pkg/dispatch"
	"github.com/livetiming/lt-go/pkg/log"
	"github.com/livetiming/lt-go/pkg/signalr"
	"github.com/livetiming/lt-go/pkg/topic"
	"github.com/livetiming/lt-go/pkg/transport"
)

// Environment variables read by ApplyEnv.
const (
	EnvHubURL   = "LT_HUB_URL"
	EnvTopics   = "LT_TOPICS"
	EnvLogLevel = "LT_LOG_LEVEL"
)

// Log output formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the client configuration.
type Config struct {
	Hub       HubConfig                `yaml:"hub"`
	Topics    []string                 `yaml:"topics"`
	Reconnect connection.BackoffConfig `yaml:"reconnect"`
	KeepAlive KeepAliveConfig          `yaml:"keepalive"`
	Dispatch  DispatchConfig           `yaml:"dispatch"`
	Logging   LoggingConfig            `yaml:"logging"`
	Capture   CaptureConfig            `yaml:"capture"`
	Archive   ArchiveConfig            `yaml:"archive"`
}

// HubConfig locates the hub and bounds the handshake.
type HubConfig struct {
	URL       string `yaml:"url"`
	Name      string `yaml:"name"`
	UserAgent string `yaml:"user_agent"`

	// RootCA is a PEM file of extra trusted certificates.
	RootCA string `yaml:"root_ca"`

	// InsecureSkipVerify disables certificate checks. Local hubs only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	NegotiateAttempts int           `yaml:"negotiate_attempts"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	SubscribeTimeout  time.Duration `yaml:"subscribe_timeout"`
}

// KeepAliveConfig tunes connection liveness.
type KeepAliveConfig struct {
	// Timeout is the maximum silence before reconnecting. Zero uses the
	// value the hub negotiates.
	Timeout time.Duration `yaml:"timeout"`

	// PingInterval is the REST ping period. Negative disables pings.
	PingInterval time.Duration `yaml:"ping_interval"`
}

// DispatchConfig sizes consumer queues.
type DispatchConfig struct {
	Capacity      int  `yaml:"capacity"`
	SkipTelemetry bool `yaml:"skip_telemetry"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// File switches output from stderr to a rotating file.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// CaptureConfig configures the protocol capture file.
type CaptureConfig struct {
	// Path of the capture file. Empty disables capture; a .zst suffix
	// compresses it.
	Path string `yaml:"path"`

	SnapshotEvery    int           `yaml:"snapshot_every"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// ArchiveConfig configures access to archived sessions.
type ArchiveConfig struct {
	BaseURL  string  `yaml:"base_url"`
	CacheDir string  `yaml:"cache_dir"`
	Speed    float64 `yaml:"speed"`
}

// Default returns the configuration used for anything a file leaves out.
func Default() *Config {
	policy := connection.DefaultSnapshotPolicy()
	return &Config{
		Hub: HubConfig{
			URL:               signalr.DefaultURL,
			Name:              signalr.DefaultHub,
			UserAgent:         signalr.DefaultUserAgent,
			NegotiateAttempts: connection.DefaultNegotiateAttempts,
			RequestTimeout:    connection.DefaultRequestTimeout,
			SubscribeTimeout:  connection.DefaultSubscribeTimeout,
		},
		Topics:    topic.Names(topic.DefaultSubscription()),
		Reconnect: connection.DefaultBackoffConfig(),
		KeepAlive: KeepAliveConfig{
			PingInterval: transport.DefaultPingInterval,
		},
		Dispatch: DispatchConfig{
			Capacity: dispatch.DefaultCapacity,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     FormatAuto,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Capture: CaptureConfig{
			SnapshotEvery:    policy.MaxEnvelopes,
			SnapshotInterval: policy.MaxInterval,
		},
		Archive: ArchiveConfig{
			BaseURL: archive.DefaultBaseURL,
			Speed:   1,
		},
	}
}

// Load reads a configuration file over the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Empty
// input yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvHubURL); ok && v != "" {
		c.Hub.URL = v
	}
	if v, ok := os.LookupEnv(EnvTopics); ok && v != "" {
		var topics []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				topics = append(topics, name)
			}
		}
		c.Topics = topics
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Hub.URL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("hub.url: invalid URL %q", c.Hub.URL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("hub.url: unsupported scheme %q", u.Scheme))
	}
	if c.Hub.NegotiateAttempts < 1 {
		errs = append(errs, errors.New("hub.negotiate_attempts must be at least 1"))
	}
	if c.Hub.RequestTimeout < 0 || c.Hub.SubscribeTimeout < 0 {
		errs = append(errs, errors.New("hub timeouts must not be negative"))
	}

	if len(c.Topics) == 0 {
		errs = append(errs, errors.New("topics: at least one topic is required"))
	} else if _, err := c.topics(); err != nil {
		errs = append(errs, fmt.Errorf("topics: %w", err))
	}

	if c.Reconnect.Initial < 0 || c.Reconnect.Max < 0 {
		errs = append(errs, errors.New("reconnect delays must not be negative"))
	}
	if c.Reconnect.Max > 0 && c.Reconnect.Initial > c.Reconnect.Max {
		errs = append(errs, errors.New("reconnect.initial exceeds reconnect.max"))
	}
	if c.Reconnect.Multiplier != 0 && c.Reconnect.Multiplier < 1 {
		errs = append(errs, errors.New("reconnect.multiplier must be at least 1"))
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		errs = append(errs, errors.New("reconnect.jitter must be between 0 and 1"))
	}

	if c.KeepAlive.Timeout < 0 {
		errs = append(errs, errors.New("keepalive.timeout must not be negative"))
	}
	if c.Dispatch.Capacity < 1 {
		errs = append(errs, errors.New("dispatch.capacity must be at least 1"))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case FormatAuto, FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		errs = append(errs, errors.New("logging rotation limits must not be negative"))
	}

	if c.Capture.SnapshotEvery < 0 || c.Capture.SnapshotInterval < 0 {
		errs = append(errs, errors.New("capture snapshot limits must not be negative"))
	}
	if c.Archive.Speed < 0 {
		errs = append(errs, errors.New("archive.speed must not be negative"))
	}

	return errors.Join(errs...)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return level, nil
}

func (c *Config) topics() ([]topic.Topic, error) {
	topics, err := topic.ParseList(c.Topics)
	if err != nil {
		return nil, err
	}
	seen := make(map[topic.Topic]bool, len(topics))
	for _, t := range topics {
		if seen[t] {
			return nil, fmt.Errorf("duplicate topic %s", t)
		}
		seen[t] = true
	}
	return topics, nil
}

// ClientConfig converts the configuration into a connection.Config.
// logger and capture may be nil.
func (c *Config) ClientConfig(logger *slog.Logger, capture log.Logger) (connection.Config, error) {
	topics, err := c.topics()
	if err != nil {
		return connection.Config{}, err
	}

	cfg := connection.Config{
		URL:               c.Hub.URL,
		Hub:               c.Hub.Name,
		Topics:            topics,
		NegotiateAttempts: c.Hub.NegotiateAttempts,
		Backoff:           c.Reconnect,
		KeepAliveTimeout:  c.KeepAlive.Timeout,
		PingInterval:      c.KeepAlive.PingInterval,
		SubscribeTimeout:  c.Hub.SubscribeTimeout,
		RequestTimeout:    c.Hub.RequestTimeout,
		DispatchCapacity:  c.Dispatch.Capacity,
		SkipTelemetry:     c.Dispatch.SkipTelemetry,
		UserAgent:         c.Hub.UserAgent,
		Logger:            logger,
		Capture:           capture,
		SnapshotPolicy: connection.SnapshotPolicy{
			MaxEnvelopes: c.Capture.SnapshotEvery,
			MaxInterval:  c.Capture.SnapshotInterval,
			MinEnvelopes: connection.DefaultSnapshotPolicy().MinEnvelopes,
		},
	}

	if c.Hub.RootCA != "" || c.Hub.InsecureSkipVerify {
		tlsCfg := &transport.TLSConfig{InsecureSkipVerify: c.Hub.InsecureSkipVerify}
		if c.Hub.RootCA != "" {
			pool, err := transport.LoadRootCAs(c.Hub.RootCA)
			if err != nil {
				return connection.Config{}, fmt.Errorf("hub.root_ca: %w", err)
			}
			tlsCfg.RootCAs = pool
		}
		cfg.TLS = tlsCfg
	}
	return cfg, nil
}

// ArchiveClient returns a client for the configured archive.
func (c *Config) ArchiveClient() (*archive.Client, error) {
	ac := &archive.Client{BaseURL: c.Archive.BaseURL, UserAgent: c.Hub.UserAgent}
	if c.Archive.CacheDir != "" {
		cache, err := archive.NewCache(c.Archive.CacheDir)
		if err != nil {
			return nil, err
		}
		ac.Cache = cache
	}
	return ac, nil
}
