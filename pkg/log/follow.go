package log

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/fsnotify/fsnotify"
)

// ErrNotFollowable is returned by Follow for compressed captures, whose
// zstd frames are only complete once the writer closes them.
var ErrNotFollowable = errors.New("log: compressed captures cannot be followed")

// errFollowEnded reports that the file went away while following.
var errFollowEnded = errors.New("log: file removed")

// Follow calls fn for every matching event, like Next, and at the end of the
// file waits for the writer to append more. It returns nil when ctx ends or
// the file is removed or renamed, and the first error from fn otherwise.
func (r *Reader) Follow(ctx context.Context, fn func(Event) error) error {
	if r.zr != nil {
		return ErrNotFollowable
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(r.file.Name()); err != nil {
		return err
	}

	for {
		event, err := r.Next()
		if err == nil {
			if err := fn(event); err != nil {
				return err
			}
			continue
		}
		// A partial item stays buffered in the decoder until the rest of
		// it is written.
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}

		err = waitForWrite(ctx, w, r.file.Name())
		if errors.Is(err, errFollowEnded) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func waitForWrite(ctx context.Context, w *fsnotify.Watcher, path string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return errFollowEnded
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return errFollowEnded
			}
			if ev.Has(fsnotify.Write) {
				return nil
			}
			// Unlinking a file we still hold open only shows up as a
			// link count change.
			if ev.Has(fsnotify.Chmod) {
				if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
					return errFollowEnded
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errFollowEnded
			}
			return err
		}
	}
}
