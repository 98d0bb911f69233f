package testhelpers

import (
	"context"
	"sync"
	"time"
)

// Recorder collects values delivered to a listener so tests can wait on them
// without sleeping.
//
//	rec := testhelpers.NewRecorder[queue.Status]()
//	engine.AddStatusListener(rec.Record)
//	rec.WaitFor(func(s queue.Status) bool { return s.IsIdle() }, time.Second)
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
	notify chan struct{}
}

func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{notify: make(chan struct{})}
}

// Record appends v and wakes waiters. It matches listener signatures.
func (r *Recorder[T]) Record(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
}

// Values returns a copy of everything recorded so far
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// WaitFor waits until some recorded value satisfies match.
// Returns false on timeout.
func (r *Recorder[T]) WaitFor(match func(T) bool, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	seen := 0
	for {
		r.mu.Lock()
		for ; seen < len(r.values); seen++ {
			if match(r.values[seen]) {
				r.mu.Unlock()
				return true
			}
		}
		ch := r.notify
		r.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

// CompletionSignal is a one-shot signal for operation completion.
type CompletionSignal struct {
	done chan struct{}
	once sync.Once
}

func NewCompletionSignal() *CompletionSignal {
	return &CompletionSignal{done: make(chan struct{})}
}

// Complete fires the signal. Later calls do nothing.
func (cs *CompletionSignal) Complete() {
	cs.once.Do(func() { close(cs.done) })
}

// Wait returns true if the signal fired before timeout
func (cs *CompletionSignal) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-cs.done:
		return true
	case <-t.C:
		return false
	}
}

func (cs *CompletionSignal) Done() <-chan struct{} {
	return cs.done
}

// CountdownLatch releases waiters after count CountDown calls.
type CountdownLatch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

func NewCountdownLatch(count int) *CountdownLatch {
	cl := &CountdownLatch{count: count, done: make(chan struct{})}
	if count <= 0 {
		close(cl.done)
	}
	return cl
}

func (cl *CountdownLatch) CountDown() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.count > 0 {
		cl.count--
		if cl.count == 0 {
			close(cl.done)
		}
	}
}

// Wait returns true if the count reached zero before timeout
func (cl *CountdownLatch) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-cl.done:
		return true
	case <-t.C:
		return false
	}
}

func (cl *CountdownLatch) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.count
}
