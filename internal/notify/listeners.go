package notify

import (
	"sort"
	"sync"
)

// ListenerID identifies a registration so it can be removed later
type ListenerID uint64

// Listeners is a callback list owned by one engine or queue instance
type Listeners[T any] struct {
	mu   sync.RWMutex
	next ListenerID
	fns  map[ListenerID]func(T)
}

// Add registers fn and returns its id
func (l *Listeners[T]) Add(fn func(T)) ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[ListenerID]func(T))
	}
	l.next++
	l.fns[l.next] = fn
	return l.next
}

// Remove unregisters id. It reports whether id was registered.
func (l *Listeners[T]) Remove(id ListenerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.fns[id]; !ok {
		return false
	}
	delete(l.fns, id)
	return true
}

func (l *Listeners[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fns)
}

func (l *Listeners[T]) Clear() {
	l.mu.Lock()
	l.fns = nil
	l.mu.Unlock()
}

// snapshot returns the callbacks in registration order
func (l *Listeners[T]) snapshot() []func(T) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]ListenerID, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]func(T), len(ids))
	for i, id := range ids {
		out[i] = l.fns[id]
	}
	return out
}

// Notify delivers v to every listener on d. Listeners registered after the
// call do not see v. Each listener is isolated: a panic in one does not stop
// delivery to the rest.
func (l *Listeners[T]) Notify(d *Dispatcher, v T) {
	fns := l.snapshot()
	if len(fns) == 0 {
		return
	}
	d.Post(func() {
		for _, fn := range fns {
			safeCall(func() { fn(v) })
		}
	})
}
