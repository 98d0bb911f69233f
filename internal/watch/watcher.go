// Package watch keeps the PHP index and the discovery cache current while
// files change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/callmap/internal/config"
	"github.com/standardbeagle/callmap/internal/debug"
)

// Indexer is the part of the symbol index the watcher refreshes
type Indexer interface {
	Root() string
	Key(path string) string
	ShouldIndex(path string) bool
	ShouldWatchDir(path string) bool
	Reindex(path string) ([]string, error)
	Remove(path string) []string
}

// Invalidator drops cached discovery results for a changed file
type Invalidator interface {
	InvalidateFile(path string, names []string) int
}

// EventType is the debounced kind of change recorded for a path
type EventType int

const (
	EventChange EventType = iota
	EventRemove
)

// Batch describes one debounced flush
type Batch struct {
	Changed     []string
	Removed     []string
	Invalidated int
	Errors      int
	Duration    time.Duration
}

// Stats are cumulative counters since Start
type Stats struct {
	EventsProcessed int64
	Errors          int64
	Batches         int64
}

// Watcher monitors the project tree and re-indexes changed PHP files
type Watcher struct {
	watcher  *fsnotify.Watcher
	index    Indexer
	cache    Invalidator
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]EventType
	kick    chan struct{}

	onBatch func(Batch)

	eventsProcessed atomic.Int64
	errorCount      atomic.Int64
	batches         atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a watcher. cache may be nil when there is no engine to notify.
func New(cfg *config.Config, index Indexer, cache Invalidator) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	debounce := cfg.Watch.Debounce()
	if debounce <= 0 {
		debounce = time.Duration(config.DefaultWatchDebounceMs) * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher:  fsw,
		index:    index,
		cache:    cache,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]EventType),
		kick:     make(chan struct{}, 1),
	}, nil
}

// OnBatch sets a callback invoked after every flush. Set it before Start.
func (w *Watcher) OnBatch(fn func(Batch)) {
	w.onBatch = fn
}

// Start adds watches below the index root and begins processing events
func (w *Watcher) Start() error {
	var err error
	w.startOnce.Do(func() {
		root := w.index.Root()
		debug.LogWatch("starting file watcher for %s", root)
		if err = w.addWatches(root, false); err != nil {
			err = fmt.Errorf("failed to add watches starting from %s: %w", root, err)
			return
		}
		w.wg.Add(2)
		go w.processEvents()
		go w.run()
	})
	return err
}

// Stop closes the watcher and waits for its goroutines. Pending events are dropped.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		w.wg.Wait()
		debug.LogWatch("file watcher stopped")
	})
	return err
}

func (w *Watcher) Stats() Stats {
	return Stats{
		EventsProcessed: w.eventsProcessed.Load(),
		Errors:          w.errorCount.Load(),
		Batches:         w.batches.Load(),
	}
}

// addWatches walks root adding a watch per directory. With enqueue set, files
// already present are queued too, which covers directories created after Start.
func (w *Watcher) addWatches(root string, enqueue bool) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.IsDir() {
			if enqueue && w.index.ShouldIndex(path) {
				w.enqueue(path, EventChange)
			}
			return nil
		}
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[realPath] {
			return filepath.SkipDir
		}
		visited[realPath] = true

		if !w.index.ShouldWatchDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			debug.LogWatch("failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.errorCount.Add(1)
			debug.LogWatch("file watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	debug.LogWatch("event %v for %s", event.Op, path)

	info, err := os.Stat(path)
	if err != nil {
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.index.ShouldIndex(path) {
			w.enqueue(path, EventRemove)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && w.index.ShouldWatchDir(path) {
			if err := w.addWatches(path, true); err != nil {
				debug.LogWatch("failed to watch new directory %s: %v", path, err)
			}
		}
		return
	}

	if !w.index.ShouldIndex(path) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
		w.enqueue(path, EventChange)
	}
}

func (w *Watcher) enqueue(path string, t EventType) {
	w.mu.Lock()
	w.pending[path] = t
	w.mu.Unlock()
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// run restarts the debounce timer on every event and flushes once it fires
func (w *Watcher) run() {
	defer w.wg.Done()
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.kick:
			timer.Reset(w.debounce)
		case <-timer.C:
			w.flush()
		}
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	events := w.pending
	w.pending = make(map[string]EventType)
	w.mu.Unlock()
	if len(events) == 0 {
		return
	}

	start := time.Now()
	var batch Batch
	for path, t := range events {
		if t == EventRemove {
			batch.Removed = append(batch.Removed, path)
		} else {
			batch.Changed = append(batch.Changed, path)
		}
	}
	sort.Strings(batch.Removed)
	sort.Strings(batch.Changed)

	// removals first so a rename lands as remove then add
	for _, path := range batch.Removed {
		batch.Invalidated += w.invalidate(path, w.index.Remove(path))
	}
	for _, path := range batch.Changed {
		names, err := w.index.Reindex(path)
		if err != nil {
			batch.Errors++
			w.errorCount.Add(1)
			debug.LogWatch("reindex %s failed: %v", path, err)
			continue
		}
		batch.Invalidated += w.invalidate(path, names)
	}

	batch.Duration = time.Since(start)
	w.eventsProcessed.Add(int64(len(events)))
	w.batches.Add(1)
	debug.LogWatch("processed %d file events, invalidated %d cache entries", len(events), batch.Invalidated)
	if w.onBatch != nil {
		w.onBatch(batch)
	}
}

func (w *Watcher) invalidate(path string, names []string) int {
	if w.cache == nil || names == nil {
		return 0
	}
	return w.cache.InvalidateFile(w.index.Key(path), names)
}
