package calltree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/callmap/internal/symbols"
)

func sym(class, name, file string, line int) symbols.Symbol {
	return symbols.Symbol{Name: name, Class: class, File: file, Line: line}
}

func mustNode(t *testing.T, class, name, file string, line int) *Node {
	t.Helper()
	n, err := NewNode(sym(class, name, file, line), "")
	require.NoError(t, err)
	return n
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    LoadingState
		event   Event
		to      LoadingState
		invalid bool
	}{
		{NotLoaded, EventQueued, Expandable, false},
		{Expandable, EventStarted, Loading, false},
		{Loading, EventCompleted, Loaded, false},
		{Loading, EventFailed, Error, false},
		{Error, EventStarted, Loading, false},
		{Loaded, EventCompleted, Loaded, false},
		{Loaded, EventQueued, Expandable, false},
		{Expandable, EventCompleted, Loaded, false},
		{Loading, EventReset, NotLoaded, false},
		{Error, EventReset, NotLoaded, false},
		{Loading, EventQueued, Loading, true},
		{Loading, EventStarted, Loading, true},
		{Loaded, EventStarted, Loaded, true},
		{Expandable, EventFailed, Expandable, true},
		{NotLoaded, EventFailed, NotLoaded, true},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			if tt.invalid {
				assert.True(t, errors.Is(err, ErrInvalidTransition))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.to, got)
		})
	}
}

func TestApplyEntryEffects(t *testing.T) {
	n := mustNode(t, "A", "m", "a.php", 3)
	require.NoError(t, n.Apply(EventQueued, ""))
	require.NoError(t, n.Apply(EventStarted, ""))
	n.SetProgress(0.4)
	assert.InDelta(t, 0.4, n.Progress(), 1e-9)

	require.NoError(t, n.Apply(EventFailed, "boom"))
	assert.Equal(t, Error, n.State())
	assert.Equal(t, "boom", n.ErrorMessage())
	assert.Zero(t, n.Progress())

	require.NoError(t, n.Apply(EventStarted, ""))
	assert.Empty(t, n.ErrorMessage(), "leaving ERROR clears the message")

	require.NoError(t, n.Apply(EventCompleted, ""))
	assert.Equal(t, Loaded, n.State())
	assert.Equal(t, 1.0, n.Progress())
	assert.False(t, n.HasMoreCallers(), "loaded with no callers is terminal")
	assert.False(t, n.CanExpand())
}

func TestApplyRejectsInvalidTransition(t *testing.T) {
	n := mustNode(t, "A", "m", "a.php", 3)
	err := n.Apply(EventFailed, "x")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, NotLoaded, n.State())
	assert.Empty(t, n.ErrorMessage())
}

func TestCompleteRecomputesHasMore(t *testing.T) {
	n := mustNode(t, "A", "m", "a.php", 3)
	b := mustNode(t, "B", "x", "b.php", 10)
	n.Complete([]*Node{b})

	assert.Equal(t, Loaded, n.State())
	assert.True(t, n.HasMoreCallers())
	assert.True(t, n.CanExpand(), "LOADED nodes can be refreshed")
}

func TestCanExpand(t *testing.T) {
	n := mustNode(t, "A", "m", "a.php", 3)
	assert.True(t, n.CanExpand())

	require.NoError(t, n.Apply(EventStarted, ""))
	assert.False(t, n.CanExpand())

	n.ResetForRetry()
	n.SetHasMoreCallers(false)
	assert.False(t, n.CanExpand())
}

func TestCallersDedupFirstWins(t *testing.T) {
	n := mustNode(t, "A", "m", "a.php", 3)
	b1 := mustNode(t, "B", "x", "b.php", 10)
	b2 := mustNode(t, "B", "x", "b.php", 10)
	c := mustNode(t, "C", "y", "c.php", 4)

	n.SetCallers([]*Node{b1, c, b2, nil})
	callers := n.Callers()
	require.Len(t, callers, 2)
	assert.Same(t, b1, callers[0])
	assert.Same(t, c, callers[1])

	assert.False(t, n.AddCaller(b2))
	assert.Equal(t, 2, n.CallerCount())
}

func TestCallersReturnsCopy(t *testing.T) {
	n := mustNode(t, "A", "m", "a.php", 3)
	n.SetCallers([]*Node{mustNode(t, "B", "x", "b.php", 10)})

	got := n.Callers()
	got[0] = nil
	assert.NotNil(t, n.Callers()[0])
}

func TestResetForRetry(t *testing.T) {
	n := mustNode(t, "A", "m", "a.php", 3)
	n.SetTaskID("task-1")
	require.NoError(t, n.Apply(EventStarted, ""))
	n.SetProgress(0.7)
	require.NoError(t, n.Apply(EventFailed, "nope"))

	n.ResetForRetry()
	assert.Equal(t, NotLoaded, n.State())
	assert.Zero(t, n.Progress())
	assert.Empty(t, n.ErrorMessage())
	assert.Empty(t, n.TaskID())
}

func TestSnapshotIsDetached(t *testing.T) {
	n := mustNode(t, "A", "m", "a.php", 3)
	n.SetTaskID("t")
	n.SetUserExpanded(true)
	n.Complete([]*Node{mustNode(t, "B", "x", "b.php", 10)})

	s := n.Snapshot()
	assert.Equal(t, n.ID(), s.ID())
	assert.Equal(t, NotLoaded, s.State())
	assert.Empty(t, s.Callers())
	assert.Empty(t, s.TaskID())
	assert.False(t, s.IsUserExpanded())
	assert.Zero(t, s.Progress())
	assert.True(t, s.HasMoreCallers())

	s.AddCaller(mustNode(t, "C", "y", "c.php", 1))
	assert.Equal(t, 1, n.CallerCount())
}

func TestNewNodeRequiresFile(t *testing.T) {
	_, err := NewNode(symbols.Symbol{Name: "m"}, "")
	assert.Error(t, err)

	n, err := NewNode(sym("", "m", "a.php", 1), "")
	require.NoError(t, err)
	assert.Equal(t, "Unknown::m()", n.Signature())
	assert.Equal(t, symbols.NoContext, n.CodeContext())
	assert.Equal(t, "Unknown::m() (a.php:1)", n.DisplayText())
}

func TestMethodIDParts(t *testing.T) {
	id := NewMethodID("C:/src/app/Order.php", "save", 42)
	file, name, line, ok := id.Parts()
	require.True(t, ok)
	assert.Equal(t, "C:/src/app/Order.php", file)
	assert.Equal(t, "save", name)
	assert.Equal(t, 42, line)
	assert.Equal(t, "save", id.Name())

	_, _, _, ok = MethodID("garbage").Parts()
	assert.False(t, ok)
	_, _, _, ok = MethodID("a.php:m:x").Parts()
	assert.False(t, ok)
}

func TestRegistryIntern(t *testing.T) {
	r := NewRegistry()
	a := mustNode(t, "A", "m", "a.php", 3)
	dup := mustNode(t, "A", "m", "a.php", 3)
	b := mustNode(t, "B", "x", "b.php", 1)

	assert.Same(t, a, r.Intern(a))
	assert.Same(t, a, r.Intern(dup))
	out := r.InternAll([]*Node{dup, b, nil})
	require.Len(t, out, 2)
	assert.Same(t, a, out[0])
	assert.Same(t, b, out[1])

	got, ok := r.Get(b.ID())
	assert.True(t, ok)
	assert.Same(t, b, got)
	assert.Len(t, r.InFile("a.php"), 1)
	assert.Equal(t, 2, r.Len())

	r.Clear()
	assert.Zero(t, r.Len())
}
