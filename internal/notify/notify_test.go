package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatcherRunsInPostOrder(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, d.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, d.Sync(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcherSurvivesPanics(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	ran := false
	d.Post(func() { panic("listener bug") })
	d.Post(func() { ran = true })
	require.NoError(t, d.Sync(context.Background()))
	assert.True(t, ran)
}

func TestDispatcherClose(t *testing.T) {
	d := NewDispatcher()
	d.Close()
	d.Close()

	assert.False(t, d.Post(func() {}))
	assert.Error(t, d.Sync(context.Background()))
}

func TestDispatcherSyncHonorsContext(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	release := make(chan struct{})
	d.Post(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Sync(ctx), context.DeadlineExceeded)
	close(release)
}

func TestListenersIsolation(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var l Listeners[string]
	var got []string
	l.Add(func(s string) { got = append(got, "first:"+s) })
	l.Add(func(s string) { panic("second always fails") })
	l.Add(func(s string) { got = append(got, "third:"+s) })

	l.Notify(d, "a")
	require.NoError(t, d.Sync(context.Background()))
	assert.Equal(t, []string{"first:a", "third:a"}, got)
}

func TestListenersAddRemove(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var l Listeners[int]
	count := 0
	id := l.Add(func(int) { count++ })
	assert.Equal(t, 1, l.Len())

	l.Notify(d, 1)
	require.NoError(t, d.Sync(context.Background()))
	assert.Equal(t, 1, count)

	assert.True(t, l.Remove(id))
	assert.False(t, l.Remove(id))
	l.Notify(d, 2)
	require.NoError(t, d.Sync(context.Background()))
	assert.Equal(t, 1, count)

	l.Add(func(int) {})
	l.Clear()
	assert.Zero(t, l.Len())
}

func TestListenersSnapshotAtNotify(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var l Listeners[int]
	late := 0
	block := make(chan struct{})
	d.Post(func() { <-block })

	l.Add(func(int) {})
	l.Notify(d, 1)
	l.Add(func(int) { late++ })
	close(block)

	require.NoError(t, d.Sync(context.Background()))
	assert.Zero(t, late)
}
