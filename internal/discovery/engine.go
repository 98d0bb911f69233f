// Package discovery turns a symbol into a caller tree that grows in the
// background: the root is searched first, then a bounded number of callers are
// pre-expanded at low priority while results are cached and published.
package discovery

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/standardbeagle/callmap/internal/cache"
	"github.com/standardbeagle/callmap/internal/calltree"
	"github.com/standardbeagle/callmap/internal/debug"
	cmerrors "github.com/standardbeagle/callmap/internal/errors"
	"github.com/standardbeagle/callmap/internal/notify"
	"github.com/standardbeagle/callmap/internal/queue"
	"github.com/standardbeagle/callmap/internal/symbols"
)

// Engine defaults
const (
	DefaultMaxDepth         = 10
	DefaultAutoExpandDepth  = 2
	DefaultAutoExpandFanout = 3
	DefaultYieldEvery       = 10
	DefaultYieldPause       = 10 * time.Millisecond
)

// Options tune the engine. Zero values take the defaults.
type Options struct {
	Queue queue.Config
	Cache cache.Config

	MaxDepth         int
	AutoExpandDepth  int
	AutoExpandFanout int
	YieldEvery       int
	YieldPause       time.Duration

	// DisableCycleGuard lets auto-expansion revisit methods already on the chain
	DisableCycleGuard bool

	CacheOptions []cache.Option
}

// DefaultOptions returns the standard limits
func DefaultOptions() Options {
	return Options{
		Queue:            queue.DefaultConfig(),
		Cache:            cache.DefaultConfig(),
		MaxDepth:         DefaultMaxDepth,
		AutoExpandDepth:  DefaultAutoExpandDepth,
		AutoExpandFanout: DefaultAutoExpandFanout,
		YieldEvery:       DefaultYieldEvery,
		YieldPause:       DefaultYieldPause,
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.MaxDepth <= 0 {
		o.MaxDepth = def.MaxDepth
	}
	if o.AutoExpandDepth < 0 {
		o.AutoExpandDepth = 0
	}
	if o.AutoExpandFanout < 0 {
		o.AutoExpandFanout = 0
	}
	if o.YieldEvery <= 0 {
		o.YieldEvery = def.YieldEvery
	}
	if o.YieldPause < 0 {
		o.YieldPause = 0
	}
}

// Engine orchestrates caller discovery for one tree
type Engine struct {
	resolver symbols.Resolver
	opts     Options

	dispatcher *notify.Dispatcher
	queue      *queue.Queue
	cache      *cache.DiscoveryCache
	registry   *calltree.Registry

	nodeListeners notify.Listeners[*calltree.Node]

	disposeOnce sync.Once
	disposed    chan struct{}
}

// New creates an engine over resolver. The default options reproduce the
// standard limits; DefaultOptions is the usual starting point.
func New(resolver symbols.Resolver, opts Options) *Engine {
	opts.applyDefaults()

	e := &Engine{
		resolver:   resolver,
		opts:       opts,
		dispatcher: notify.NewDispatcher(),
		cache:      cache.New(opts.Cache, opts.CacheOptions...),
		registry:   calltree.NewRegistry(),
		disposed:   make(chan struct{}),
	}
	e.queue = queue.New(opts.Queue, e.findCallers, e.dispatcher)
	return e
}

// Cache exposes the engine's discovery cache
func (e *Engine) Cache() *cache.DiscoveryCache { return e.cache }

// CacheStats reports cache counters
func (e *Engine) CacheStats() cache.Stats { return e.cache.Stats() }

// Registry exposes the identity map of nodes shown in the tree
func (e *Engine) Registry() *calltree.Registry { return e.registry }

// Options returns the effective options
func (e *Engine) Options() Options { return e.opts }

// BuildInitialTree wraps sym in a root node marked EXPANDABLE.
// A symbol without a containing file yields a construction error.
func (e *Engine) BuildInitialTree(sym symbols.Symbol) (*calltree.Node, error) {
	root, err := e.newNode(sym)
	if err != nil {
		return nil, cmerrors.NewConstructionError(sym.Signature(), err)
	}
	root = e.registry.Intern(root)
	root.MarkExpandable()
	return root, nil
}

func (e *Engine) newNode(sym symbols.Symbol) (*calltree.Node, error) {
	codeContext := ""
	if cp, ok := e.resolver.(symbols.ContextProvider); ok {
		if text, err := cp.CodeContext(sym); err == nil {
			codeContext = text
		}
	}
	return calltree.NewNode(sym, codeContext)
}

// StartDiscovery registers the optional listeners and expands root at HIGH priority
func (e *Engine) StartDiscovery(root *calltree.Node, onNode func(*calltree.Node), onStatus func(queue.Status)) {
	if onNode != nil {
		e.AddNodeListener(onNode)
	}
	if onStatus != nil {
		e.AddStatusListener(onStatus)
	}
	root.SetUserExpanded(true)
	e.Expand(root, queue.High, 0)
}

// Expand requests the callers of node. It is a no-op when the node cannot expand
// or depth exceeds the maximum. A cache hit completes the node without a task.
// It reports whether the node was completed from cache or a task was queued.
func (e *Engine) Expand(node *calltree.Node, priority queue.Priority, depth int) bool {
	return e.expand(node, priority, depth, nil)
}

func (e *Engine) expand(node *calltree.Node, priority queue.Priority, depth int, chain []calltree.MethodID) bool {
	if node == nil || e.isDisposed() {
		return false
	}
	if !node.CanExpand() || depth > e.opts.MaxDepth {
		return false
	}

	if e.queue.IsTracked(node.ID()) {
		debug.LogEngine("skip expand of %s: task already tracked", node.ID())
		return false
	}

	if callers, ok := e.cache.Get(node.ID()); ok {
		debug.LogEngine("cache hit for %s (%d callers)", node.ID(), len(callers))
		node.Complete(e.adoptCached(callers))
		e.notifyNode(node)
		return true
	}

	task := &queue.Task{
		Node:     node,
		Priority: priority,
		Depth:    depth,
		MaxDepth: e.opts.MaxDepth,
		Chain:    chain,
	}
	task.OnProgress = func(float64) { e.notifyNode(node) }
	task.OnComplete = func(callers []*calltree.Node) { e.merge(task, callers) }
	task.OnError = func(error) { e.notifyNode(node) }

	if !e.queue.Enqueue(task) {
		return false
	}
	e.notifyNode(node)
	return true
}

// merge caches a finished discovery and schedules the bounded background
// pre-expansion. The queue has already completed the node with callers.
func (e *Engine) merge(task *queue.Task, callers []*calltree.Node) {
	node := task.Node
	e.cache.Put(node.ID(), callers)

	for _, c := range callers {
		if c.State() == calltree.NotLoaded {
			c.MarkExpandable()
		}
	}
	e.notifyNode(node)

	if task.Depth >= e.opts.AutoExpandDepth {
		return
	}
	chain := append(slices.Clone(task.Chain), node.ID())
	scheduled := 0
	for _, c := range callers {
		if scheduled >= e.opts.AutoExpandFanout {
			break
		}
		scheduled++
		if !e.opts.DisableCycleGuard && slices.Contains(chain, c.ID()) {
			debug.LogEngine("skip auto-expand of %s: already on chain", c.ID())
			continue
		}
		e.expand(c, queue.Low, task.Depth+1, chain)
	}
}

// adoptCached maps cached snapshots onto canonical nodes. A canonical node that
// is idle and was not expanded by the user is reset to match its snapshot, so
// a cache hit never brings back live grandchildren.
func (e *Engine) adoptCached(snapshots []*calltree.Node) []*calltree.Node {
	out := make([]*calltree.Node, 0, len(snapshots))
	for _, snap := range snapshots {
		n := e.registry.Intern(snap)
		if n != snap && !n.IsLoading() && !n.IsUserExpanded() && !e.queue.IsTracked(n.ID()) {
			n.SetCallers(nil)
			n.ResetForRetry()
			n.SetHasMoreCallers(snap.HasMoreCallers())
		}
		out = append(out, n)
	}
	return out
}

// Retry resets a node, typically one in ERROR, drops its cached callers and
// queues a fresh search at HIGH priority
func (e *Engine) Retry(node *calltree.Node) bool {
	if node == nil {
		return false
	}
	e.queue.CancelMethod(node.ID())
	e.cache.Invalidate(node.ID())
	node.ResetForRetry()
	node.SetHasMoreCallers(true)
	return e.Expand(node, queue.High, 0)
}

// CancelExpansion cancels the task tracked for node, if any
func (e *Engine) CancelExpansion(node *calltree.Node) bool {
	if node == nil {
		return false
	}
	if e.queue.CancelMethod(node.ID()) {
		e.notifyNode(node)
		return true
	}
	return false
}

// CancelAll cancels every task and resets the queue counters
func (e *Engine) CancelAll() {
	e.queue.CancelAll()
}

// QueueStatus returns the current queue snapshot
func (e *Engine) QueueStatus() queue.Status {
	return e.queue.Status()
}

// AddNodeListener registers fn for node updates, delivered on the dispatcher goroutine
func (e *Engine) AddNodeListener(fn func(*calltree.Node)) notify.ListenerID {
	return e.nodeListeners.Add(fn)
}

func (e *Engine) RemoveNodeListener(id notify.ListenerID) bool {
	return e.nodeListeners.Remove(id)
}

// AddStatusListener registers fn for queue status snapshots
func (e *Engine) AddStatusListener(fn func(queue.Status)) notify.ListenerID {
	return e.queue.AddStatusListener(fn)
}

func (e *Engine) RemoveStatusListener(id notify.ListenerID) bool {
	return e.queue.RemoveStatusListener(id)
}

func (e *Engine) notifyNode(n *calltree.Node) {
	e.nodeListeners.Notify(e.dispatcher, n)
}

// Sync waits until all notifications published so far were delivered
func (e *Engine) Sync(ctx context.Context) error {
	return e.dispatcher.Sync(ctx)
}

// AwaitIdle blocks until the queue has nothing pending or active, or ctx ends
func (e *Engine) AwaitIdle(ctx context.Context) error {
	interval := e.opts.Queue.IdleWait
	if interval <= 0 {
		interval = queue.DefaultIdleWait
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		if e.queue.Status().IsIdle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.disposed:
			return queue.ErrDisposed
		case <-ticker.C:
		}
	}
}

// InvalidateFile drops cached results that may be stale after path changed.
// names are the method names declared or called in the old and new content.
func (e *Engine) InvalidateFile(path string, names []string) int {
	removed := e.cache.InvalidateByFilePattern(path)
	removed += e.cache.InvalidateByName(names...)
	if removed > 0 {
		debug.LogEngine("invalidated %d cache entries after change to %s", removed, path)
	}
	return removed
}

// Dispose cancels all work, clears listeners and the cache, and stops the
// dispatcher. Safe to call more than once.
func (e *Engine) Dispose() {
	e.disposeOnce.Do(func() {
		close(e.disposed)
		e.queue.Dispose()
		e.nodeListeners.Clear()
		e.cache.Clear()
		e.cache.Close()
		e.registry.Clear()
		e.dispatcher.Close()
	})
}

func (e *Engine) isDisposed() bool {
	select {
	case <-e.disposed:
		return true
	default:
		return false
	}
}
