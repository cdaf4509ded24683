package log

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// FileLogger writes capture events to a file in CBOR format.
// Paths ending in ".zst" are written as a zstd stream.
// It is safe for concurrent use from multiple goroutines.
type FileLogger struct {
	file    *os.File
	zw      *zstd.Encoder
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewFileLogger creates a new FileLogger that writes to the specified path.
// If the file exists, new events are appended; a compressed file gets a new
// zstd frame, which readers decode as one continuous stream. The file is
// created with permissions 0644 if it doesn't exist.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	l := &FileLogger{file: f}
	var w io.Writer = f
	if IsCompressed(path) {
		zw, err := compressWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		l.zw = zw
		w = zw
	}
	l.encoder = NewEncoder(w)
	return l, nil
}

// Log writes an event to the log file.
// This method is safe for concurrent use.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	// A capture must never disrupt the feed; failures are only counted.
	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
	}
}

// Dropped returns how many events failed to encode.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Flush pushes buffered compressed data to the file.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.zw == nil {
		return nil
	}
	return l.zw.Flush()
}

// Close closes the log file.
// It is safe to call Close multiple times.
// After Close is called, subsequent Log calls are silently ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	var zerr error
	if l.zw != nil {
		zerr = l.zw.Close()
	}
	return errors.Join(zerr, l.file.Close())
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
