// Package notify delivers tree and queue events to listeners on a single
// dispatcher goroutine, the control thread of the caller discovery engine.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/standardbeagle/callmap/internal/debug"
)

// Dispatcher runs posted functions one at a time, in post order, on its own goroutine.
// A panicking function is recovered and does not stop the dispatcher.
type Dispatcher struct {
	mu      sync.Mutex
	pending []func()
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	closeOnce sync.Once
}

// NewDispatcher starts the dispatcher goroutine. Call Close to stop it.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

// Post queues fn for execution. It never blocks and returns false once closed.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.pending = append(d.pending, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync waits until everything posted before the call has run
func (d *Dispatcher) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if !d.Post(func() { close(reached) }) {
		return fmt.Errorf("dispatcher closed")
	}
	select {
	case <-reached:
		return nil
	case <-d.done:
		return fmt.Errorf("dispatcher closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the goroutine. Functions still pending are dropped.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.pending = nil
		d.mu.Unlock()
		close(d.stop)
	})
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			if len(d.pending) == 0 || d.closed {
				d.mu.Unlock()
				break
			}
			batch := d.pending
			d.pending = nil
			d.mu.Unlock()

			for _, fn := range batch {
				select {
				case <-d.stop:
					return
				default:
				}
				safeCall(fn)
			}
		}
	}
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			debug.LogEngine("listener panic recovered: %v", r)
		}
	}()
	fn()
}
