// Package watch re-runs scripts when they change on disk.
package watch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is the quiet period after a change during which further events
// are ignored. Editors often write a file several times per save.
const Debounce = 100 * time.Millisecond

// Watcher monitors script files and calls a handler when one changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool // absolute paths
	onChange func(path string)
	stdout   io.Writer
	stderr   io.Writer

	// Track last change time to debounce rapid changes
	mu         sync.Mutex
	lastChange time.Time
	changeSeq  uint64
}

// New creates a watcher for files. onChange receives the absolute path of
// the file that changed.
func New(files []string, onChange func(path string), stdout, stderr io.Writer) (*Watcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsWatcher,
		files:    make(map[string]bool),
		stdout:   stdout,
		stderr:   stderr,
		onChange: onChange,
	}

	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			fsWatcher.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	// Watch directories rather than files so saves that replace the file
	// are still seen.
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// Files returns the watched paths in sorted order.
func (w *Watcher) Files() []string {
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Start begins watching for file changes in the background.
func (w *Watcher) Start(ctx context.Context) {
	for _, f := range w.Files() {
		w.logInfo("watching %s", f)
	}
	go w.eventLoop(ctx)
}

// eventLoop processes file system events
func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only handle write and create events
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.files[abs] {
				continue
			}

			// Debounce rapid changes
			w.mu.Lock()
			if time.Since(w.lastChange) < Debounce {
				w.mu.Unlock()
				continue
			}
			w.lastChange = time.Now()
			w.changeSeq++
			w.mu.Unlock()

			w.logInfo("changed: %s", event.Name)
			if w.onChange != nil {
				w.onChange(abs)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logError("watcher error: %v", err)
		}
	}
}

// ChangeSeq returns the number of changes handled so far.
func (w *Watcher) ChangeSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changeSeq
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) logInfo(format string, args ...any) {
	if w.stdout != nil {
		fmt.Fprintf(w.stdout, "[WATCH] "+format+"\n", args...)
	}
}

func (w *Watcher) logError(format string, args ...any) {
	if w.stderr != nil {
		fmt.Fprintf(w.stderr, "[WATCH ERROR] "+format+"\n", args...)
	}
}
