package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/tracebeacon/internal/ports"
)

// Follow applies the commands in path, then keeps applying lines appended to
// it until ctx is cancelled.
func (r *Runner) Follow(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { f.Close() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are noticed too.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	t := &tail{reader: bufio.NewReader(f)}
	if err := t.drain(r); err != nil {
		return err
	}

	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// Replaced: start over on the new file.
				nf, err := os.Open(path)
				if err != nil {
					r.logger.Warn("reopen failed", ports.String("path", path), ports.Err(err))
					continue
				}
				f.Close()
				f = nf
				t = &tail{reader: bufio.NewReader(f), line: t.line}
			}
			if err := t.drain(r); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watch error", ports.String("path", path), ports.Err(err))
		}
	}
}

// tail reads complete lines, holding back a trailing partial line until the
// rest of it is written.
type tail struct {
	reader  *bufio.Reader
	partial []byte
	line    int
}

func (t *tail) drain(r *Runner) error {
	for {
		chunk, err := t.reader.ReadBytes('\n')
		t.partial = append(t.partial, chunk...)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read commands: %w", err)
		}

		t.line++
		line := t.partial
		t.partial = nil
		if err := r.applyLine(t.line, line); err != nil {
			return err
		}
	}
}
