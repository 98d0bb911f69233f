package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/standardbeagle/callmap/internal/calltree"
	"github.com/standardbeagle/callmap/internal/debug"
	cmerrors "github.com/standardbeagle/callmap/internal/errors"
	"github.com/standardbeagle/callmap/internal/notify"
)

// Queue defaults
const (
	DefaultMaxConcurrent = 3
	DefaultTaskTimeout   = 30 * time.Second
	DefaultIdleWait      = 100 * time.Millisecond
)

// ErrDisposed is returned by operations on a disposed queue
var ErrDisposed = errors.New("discovery queue disposed")

// Config controls scheduling
type Config struct {
	MaxConcurrent int
	TaskTimeout   time.Duration
	IdleWait      time.Duration
}

// DefaultConfig returns the default scheduling limits
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: DefaultMaxConcurrent,
		TaskTimeout:   DefaultTaskTimeout,
		IdleWait:      DefaultIdleWait,
	}
}

type activeTask struct {
	task   *Task
	cancel context.CancelFunc
	done   chan struct{}

	// mu serializes result delivery with cancellation
	mu        sync.Mutex
	cancelled bool
}

// markCancelled stops result delivery and resets the node
func (at *activeTask) markCancelled() {
	at.cancel()
	at.mu.Lock()
	defer at.mu.Unlock()
	if at.cancelled {
		return
	}
	at.cancelled = true
	at.task.Node.ResetForRetry()
}

// Queue schedules discovery tasks by priority with a bound on concurrent work.
// At most one task per method id is tracked at a time.
type Queue struct {
	cfg        Config
	runner     Runner
	dispatcher *notify.Dispatcher
	listeners  notify.Listeners[Status]
	now        func() time.Time

	mu         sync.Mutex
	pending    taskHeap
	active     map[string]*activeTask
	tracked    map[calltree.MethodID]string
	processing bool
	disposed   bool
	seq        uint64
	completed  int
	failed     int
	total      int

	base        context.Context
	baseCancel  context.CancelFunc
	wake        chan struct{}
	wg          sync.WaitGroup
	disposeOnce sync.Once
}

// New creates a queue that runs tasks with runner and publishes status on dispatcher
func New(cfg Config, runner Runner, dispatcher *notify.Dispatcher) *Queue {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = def.IdleWait
	}

	base, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:        cfg,
		runner:     runner,
		dispatcher: dispatcher,
		now:        time.Now,
		active:     make(map[string]*activeTask),
		tracked:    make(map[calltree.MethodID]string),
		base:       base,
		baseCancel: cancel,
		wake:       make(chan struct{}, 1),
	}
}

// Config returns the effective scheduling limits
func (q *Queue) Config() Config {
	return q.cfg
}

// AddStatusListener registers fn for status snapshots
func (q *Queue) AddStatusListener(fn func(Status)) notify.ListenerID {
	return q.listeners.Add(fn)
}

// RemoveStatusListener unregisters a status listener
func (q *Queue) RemoveStatusListener(id notify.ListenerID) bool {
	return q.listeners.Remove(id)
}

// Enqueue accepts task unless its node is loading or another task for the same
// method is pending or active. Accepted tasks mark the node EXPANDABLE.
func (q *Queue) Enqueue(task *Task) bool {
	if task == nil || task.Node == nil {
		return false
	}

	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return false
	}
	mid := task.MethodID()
	if task.Node.IsLoading() {
		q.mu.Unlock()
		debug.LogQueue("skip %s: node is loading", mid)
		return false
	}
	if existing, ok := q.tracked[mid]; ok {
		q.mu.Unlock()
		debug.LogQueue("skip %s: task %s already tracked", mid, existing)
		return false
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = q.now()
	}
	q.seq++
	task.seq = q.seq

	if err := task.Node.Apply(calltree.EventQueued, ""); err != nil {
		debug.LogQueue("enqueue %s: %v", mid, err)
	}
	task.Node.SetTaskID(task.ID)

	heap.Push(&q.pending, task)
	q.tracked[mid] = task.ID
	q.total++

	start := !q.processing
	if start {
		q.processing = true
		q.wg.Add(1)
	}
	status := q.statusLocked()
	q.mu.Unlock()

	debug.LogQueue("enqueued %s priority=%s depth=%d", mid, task.Priority, task.Depth)
	q.publish(status)
	if start {
		go q.loop()
	} else {
		q.signal()
	}
	return true
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// loop schedules tasks until nothing is pending or active
func (q *Queue) loop() {
	defer q.wg.Done()

	timer := time.NewTimer(q.cfg.IdleWait)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.disposed || (q.pending.Len() == 0 && len(q.active) == 0) {
			q.processing = false
			q.mu.Unlock()
			return
		}
		for len(q.active) < q.cfg.MaxConcurrent && q.pending.Len() > 0 {
			task := heap.Pop(&q.pending).(*Task)
			if !task.Valid() {
				delete(q.tracked, task.MethodID())
				continue
			}
			if err := task.Node.Apply(calltree.EventStarted, ""); err != nil {
				// completed elsewhere, e.g. from cache, while it waited
				debug.LogQueue("drop %s: %v", task.MethodID(), err)
				q.untrackLocked(task)
				task.Node.SetTaskID("")
				continue
			}
			q.startLocked(task)
		}
		q.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(q.cfg.IdleWait)
		select {
		case <-timer.C:
		case <-q.wake:
		case <-q.base.Done():
		}
		q.reap()
	}
}

// startLocked moves a task already marked LOADING into the active set; q.mu must be held
func (q *Queue) startLocked(task *Task) {
	ctx, cancel := context.WithTimeout(q.base, q.cfg.TaskTimeout)
	at := &activeTask{task: task, cancel: cancel, done: make(chan struct{})}
	q.active[task.ID] = at

	debug.LogQueue("start %s (%d/%d active)", task.MethodID(), len(q.active), q.cfg.MaxConcurrent)
	q.publish(q.statusLocked())

	q.wg.Add(1)
	go q.execute(ctx, at)
}

type result struct {
	callers []*calltree.Node
	err     error
	// returned is false when the deadline or a cancel beat the body
	returned bool
}

func (q *Queue) execute(ctx context.Context, at *activeTask) {
	defer q.wg.Done()
	defer close(at.done)
	defer at.cancel()

	task := at.task
	progress := func(p float64) {
		if ctx.Err() != nil {
			return
		}
		task.Node.SetProgress(p)
		if task.OnProgress != nil {
			task.OnProgress(p)
		}
	}

	resCh := make(chan result, 1)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				resCh <- result{err: fmt.Errorf("discovery panicked: %v", r), returned: true}
			}
		}()
		callers, err := q.runner(ctx, task, progress)
		resCh <- result{callers: callers, err: err, returned: true}
	}()

	var res result
	select {
	case res = <-resCh:
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	}
	q.finish(ctx, at, res)
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeCancelled
)

func (q *Queue) finish(ctx context.Context, at *activeTask, res result) {
	task := at.task
	mid := task.MethodID()

	var kind outcome
	var failure error
	switch {
	case res.returned && res.err == nil:
		kind = outcomeCompleted
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = outcomeFailed
		failure = cmerrors.NewTimeoutError(string(mid), q.cfg.TaskTimeout)
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(res.err, context.Canceled):
		kind = outcomeCancelled
	default:
		kind = outcomeFailed
		failure = res.err
	}

	at.mu.Lock()
	if at.cancelled {
		at.mu.Unlock()
		debug.LogQueue("drop result of cancelled task %s", mid)
		return
	}
	switch kind {
	case outcomeCompleted:
		task.Node.Complete(res.callers)
		if task.OnComplete != nil {
			task.OnComplete(res.callers)
		}
	case outcomeFailed:
		debug.LogQueue("task %s failed: %v", mid, failure)
		if err := task.Node.Apply(calltree.EventFailed, failure.Error()); err != nil {
			debug.LogQueue("task %s: %v", mid, err)
		}
		if task.OnError != nil {
			task.OnError(failure)
		}
	case outcomeCancelled:
		task.Node.ResetForRetry()
	}
	at.mu.Unlock()

	q.mu.Lock()
	if cur, ok := q.active[task.ID]; ok && cur == at {
		delete(q.active, task.ID)
		if q.tracked[mid] == task.ID {
			delete(q.tracked, mid)
		}
		switch kind {
		case outcomeCompleted:
			q.completed++
		case outcomeFailed:
			q.failed++
		}
	}
	status := q.statusLocked()
	q.mu.Unlock()

	q.publish(status)
	q.signal()
}

// reap drops active entries whose execution has already ended
func (q *Queue) reap() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, at := range q.active {
		select {
		case <-at.done:
			delete(q.active, id)
			if q.tracked[at.task.MethodID()] == id {
				delete(q.tracked, at.task.MethodID())
			}
		default:
		}
	}
}

// Cancel stops the task with the given id, pending or running, and resets its
// node. Cancellation is not counted as a failure.
func (q *Queue) Cancel(taskID string) bool {
	q.mu.Lock()
	for _, t := range q.pending {
		if t.ID == taskID {
			heap.Remove(&q.pending, t.index)
			q.untrackLocked(t)
			status := q.statusLocked()
			q.mu.Unlock()

			t.Node.ResetForRetry()
			debug.LogQueue("cancelled pending %s", t.MethodID())
			q.publish(status)
			return true
		}
	}

	at, ok := q.active[taskID]
	if !ok {
		q.mu.Unlock()
		return false
	}
	delete(q.active, taskID)
	q.untrackLocked(at.task)
	status := q.statusLocked()
	q.mu.Unlock()

	at.markCancelled()
	debug.LogQueue("cancelled running %s", at.task.MethodID())
	q.publish(status)
	q.signal()
	return true
}

// CancelMethod cancels whatever task is tracked for the method id
func (q *Queue) CancelMethod(id calltree.MethodID) bool {
	q.mu.Lock()
	taskID, ok := q.tracked[id]
	q.mu.Unlock()
	if !ok {
		return false
	}
	return q.Cancel(taskID)
}

func (q *Queue) untrackLocked(t *Task) {
	if q.tracked[t.MethodID()] == t.ID {
		delete(q.tracked, t.MethodID())
	}
}

// CancelAll empties the queue, cancels running work, resets every affected
// node and zeroes the counters.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	pending := []*Task(q.pending)
	active := q.active
	q.pending = nil
	q.active = make(map[string]*activeTask)
	q.tracked = make(map[calltree.MethodID]string)
	q.completed, q.failed, q.total = 0, 0, 0
	status := q.statusLocked()
	q.mu.Unlock()

	for _, t := range pending {
		t.Node.ResetForRetry()
	}
	for _, at := range active {
		at.markCancelled()
	}
	debug.LogQueue("cancelled all: %d pending, %d active", len(pending), len(active))
	q.publish(status)
	q.signal()
}

// Status returns a snapshot of the queue counters
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

func (q *Queue) statusLocked() Status {
	return Status{
		Pending:   q.pending.Len(),
		Active:    len(q.active),
		Completed: q.completed,
		Failed:    q.failed,
		Total:     q.total,
	}
}

// IsTracked reports whether a task for id is pending or active
func (q *Queue) IsTracked(id calltree.MethodID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.tracked[id]
	return ok
}

func (q *Queue) publish(s Status) {
	if q.dispatcher == nil {
		return
	}
	q.listeners.Notify(q.dispatcher, s)
}

// Dispose cancels everything, stops the scheduler and waits for its goroutines,
// including runner bodies that are still returning after a timeout or cancel.
// It is safe to call more than once but must not be called from a task callback.
func (q *Queue) Dispose() {
	q.disposeOnce.Do(func() {
		q.mu.Lock()
		q.disposed = true
		q.mu.Unlock()

		q.CancelAll()
		q.baseCancel()
		q.listeners.Clear()
		q.wg.Wait()
		debug.LogQueue("disposed")
	})
}
