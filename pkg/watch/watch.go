// Package watch triggers document reloads when the viewed file changes
// on disk. Editors and exporters save in bursts, or replace the file
// wholesale with a rename, so change events are debounced before the
// reload callback fires.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period required after the last change
// event before the callback fires.
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes a single file and reports settled changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func(path string)
	cancel   context.CancelFunc
}

// New starts watching path and invokes onChange once writes to it have
// settled for the debounce period. A non-positive debounce selects
// DefaultDebounce. The parent directory is watched rather than the file
// itself, so atomic save-and-rename replacement is seen too.
func New(path string, debounce time.Duration, onChange func(string)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:  fsw,
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		cancel:   cancel,
	}
	go w.loop(ctx)
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Close stops the watcher and abandons any debounce still counting
// down.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, _ := filepath.Abs(event.Name)
			if abs != w.path {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if w.onChange != nil {
					w.onChange(w.path)
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			log.Printf("watch: %s: %v", w.path, err)
		}
	}
}
