package trigger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Ariequ/svn-auto-merge/internal/engine"
	"github.com/Ariequ/svn-auto-merge/internal/output"
)

// Watcher turns writes to the hook signal file into gate submissions. Hooks
// that cannot run a merge inline append to the queue and touch the signal
// file; the daemon reacts within the latency of one fsnotify event instead
// of one poll interval.
type Watcher struct {
	watcher    *fsnotify.Watcher
	signalPath string
	queue      *Queue
	gate       *Gate
	log        *output.Splog
}

// NewWatcher creates a watcher for the signal file. The file itself may not
// exist yet, so the watch is on its directory and events are filtered by
// name.
func NewWatcher(signalPath string, queue *Queue, gate *Gate, log *output.Splog) (*Watcher, error) {
	dir := filepath.Dir(signalPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating signal directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating signal watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		watcher:    fsWatcher,
		signalPath: filepath.Clean(signalPath),
		queue:      queue,
		gate:       gate,
		log:        log,
	}, nil
}

// Run blocks until ctx is done, draining the queue into a cycle submission
// whenever the signal file is written.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.signalPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.drain()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("signal watcher error: %v", err)
		}
	}
}

// Stop releases the underlying fsnotify watcher. Safe to call more than
// once.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// drain claims the pending merge requests and submits one open-range cycle
// covering all of them. The scope stays unbounded so a hook can never
// leapfrog older unprocessed revisions.
func (w *Watcher) drain() {
	requests, err := w.queue.Drain()
	if err != nil {
		w.log.Warn("draining merge requests: %v", err)
	}

	if len(requests) > 0 {
		w.log.Info("hook signal received, %d merge request(s) queued", len(requests))
	} else {
		w.log.Debug("hook signal received with an empty queue")
	}

	w.gate.Submit(engine.Scope{})
}

// TouchSignal wakes a watching daemon by rewriting the signal file. The
// content is informational only; fsnotify reacts to the write itself.
func TouchSignal(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating signal directory: %w", err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(path, []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("touching signal file: %w", err)
	}
	return nil
}
