package devserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/pkg/logging"
)

// Publisher receives the frames read from spool files.
type Publisher interface {
	PublishFrame(frame protocol.Frame) int
}

// SpoolWatcher publishes every *.json file written into a directory. A file
// holds one server message or a JSON array of messages (a batch).
//
// Editors and copy tools often write a file in several steps, so events for
// the same file are debounced before it is read.
type SpoolWatcher struct {
	mu sync.Mutex

	dir              string
	removeProcessed  bool
	debounceInterval time.Duration
	publisher        Publisher

	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	stopCh  chan struct{}
	running bool

	// processed is called after each file; used by tests.
	processed func(path string, err error)
}

// SpoolConfig configures a SpoolWatcher.
type SpoolConfig struct {
	Dir              string
	RemoveProcessed  bool
	DebounceInterval time.Duration
}

// NewSpoolWatcher creates a watcher publishing to p.
func NewSpoolWatcher(cfg SpoolConfig, p Publisher) *SpoolWatcher {
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	return &SpoolWatcher{
		dir:              cfg.Dir,
		removeProcessed:  cfg.RemoveProcessed,
		debounceInterval: cfg.DebounceInterval,
		publisher:        p,
		pending:          make(map[string]*time.Timer),
		stopCh:           make(chan struct{}),
	}
}

// Start creates the spool directory if needed, publishes the files already
// present in name order and watches for new ones until ctx ends or Stop is
// called.
func (w *SpoolWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("creating spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		w.mu.Unlock()
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	existing, err := filepath.Glob(filepath.Join(w.dir, "*.json"))
	if err != nil {
		w.Stop()
		return err
	}
	sort.Strings(existing)
	for _, path := range existing {
		w.process(path)
	}

	go w.processEvents(ctx, watcher)

	logging.Info("SpoolWatcher", "Watching %s for update files", w.dir)
	return nil
}

func (w *SpoolWatcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return

		case <-w.stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isSpoolFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.debounce(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("SpoolWatcher", err, "Filesystem watcher error")
		}
	}
}

func (w *SpoolWatcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounceInterval, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.process(path)
	})
}

// process publishes the content of one spool file.
func (w *SpoolWatcher) process(path string) {
	err := w.publishFile(path)
	if err != nil {
		logging.Warn("SpoolWatcher", "Skipping %s: %v", filepath.Base(path), err)
	}
	if w.processed != nil {
		w.processed(path, err)
	}
}

func (w *SpoolWatcher) publishFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}

	n := w.publisher.PublishFrame(frame)
	logging.Info("SpoolWatcher", "Published %s (%d messages) to %d connections", filepath.Base(path), len(frame.Messages), n)

	if w.removeProcessed {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing processed file: %w", err)
		}
	}
	return nil
}

// Stop ends watching. Pending debounced files are dropped.
func (w *SpoolWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)

	for _, timer := range w.pending {
		timer.Stop()
	}
	w.pending = make(map[string]*time.Timer)

	if err := w.watcher.Close(); err != nil {
		logging.Error("SpoolWatcher", err, "Error closing filesystem watcher")
	}
	w.watcher = nil
	logging.Info("SpoolWatcher", "Stopped watching %s", w.dir)
}

func isSpoolFile(path string) bool {
	name := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(name), ".json") && !strings.HasPrefix(name, ".")
}
