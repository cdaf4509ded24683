package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetiming/lt-go/pkg/config"
)

func loggingConfig(level, format string) config.LoggingConfig {
	cfg := config.Default().Logging
	cfg.Level = level
	cfg.Format = format
	return cfg
}

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		format string
		json   bool
	}{
		{config.FormatText, false},
		{config.FormatJSON, true},
		// A buffer is not a terminal but also not a file; text is kept.
		{config.FormatAuto, false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, closeLog, err := newLogger(loggingConfig("info", tt.format), &buf)
			require.NoError(t, err)
			defer closeLog()

			logger.Info("connected", "hub", "example")
			line := strings.TrimSpace(buf.String())
			assert.Equal(t, tt.json, json.Valid([]byte(line)), "output: %s", line)
			assert.Contains(t, line, "connected")
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := newLogger(loggingConfig("warn", config.FormatText), &buf)
	require.NoError(t, err)
	defer closeLog()

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	_, _, err = newLogger(loggingConfig("loud", config.FormatText), &buf)
	assert.Error(t, err)
}

func TestNewLogger_RedirectedFileIsJSON(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stderr.log"))
	require.NoError(t, err)
	defer f.Close()

	logger, closeLog, err := newLogger(loggingConfig("info", config.FormatAuto), f)
	require.NoError(t, err)
	defer closeLog()
	logger.Info("redirected")

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.True(t, json.Valid(bytes.TrimSpace(data)), "output: %s", data)
}

func TestNewLogger_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lt-client.log")
	cfg := loggingConfig("debug", config.FormatAuto)
	cfg.File = path

	var stderr bytes.Buffer
	logger, closeLog, err := newLogger(cfg, &stderr)
	require.NoError(t, err)
	logger.Debug("to file", "n", 1)
	closeLog()

	assert.Empty(t, stderr.String(), "file logging leaves stderr alone")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "to file", entry["msg"])
	assert.Equal(t, float64(1), entry["n"])
}
