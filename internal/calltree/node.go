package calltree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/standardbeagle/callmap/internal/symbols"
)

// MethodID identifies a caller tree vertex as "file:name:line".
// Two nodes with the same MethodID are the same method.
type MethodID string

// NewMethodID derives the id of a declaration
func NewMethodID(file, name string, line int) MethodID {
	return MethodID(file + ":" + name + ":" + strconv.Itoa(line))
}

// IDOf derives the id of a symbol
func IDOf(sym symbols.Symbol) MethodID {
	return NewMethodID(sym.File, sym.Name, sym.Line)
}

// Parts splits the id back into file, name and line. File paths may contain ':'.
func (id MethodID) Parts() (file, name string, line int, ok bool) {
	s := string(id)
	lineSep := strings.LastIndexByte(s, ':')
	if lineSep <= 0 {
		return "", "", 0, false
	}
	line, err := strconv.Atoi(s[lineSep+1:])
	if err != nil {
		return "", "", 0, false
	}
	nameSep := strings.LastIndexByte(s[:lineSep], ':')
	if nameSep < 0 {
		return "", "", 0, false
	}
	return s[:nameSep], s[nameSep+1 : lineSep], line, true
}

// File returns the file component of the id
func (id MethodID) File() string {
	f, _, _, _ := id.Parts()
	return f
}

// Name returns the method name component of the id
func (id MethodID) Name() string {
	_, n, _, _ := id.Parts()
	return n
}

// Node is a caller tree vertex. All accessors are safe for concurrent use:
// workers mutate nodes while listeners read them from the dispatcher goroutine.
type Node struct {
	id        MethodID
	symbol    symbols.Symbol
	signature string
	context   string

	mu           sync.RWMutex
	state        LoadingState
	progress     float64
	errorMessage string
	hasMore      bool
	taskID       string
	userExpanded bool
	callers      []*Node
}

var errNoFile = errors.New("symbol has no containing file")

// NewNode wraps a symbol in a NOT_LOADED node. codeContext may be empty.
func NewNode(sym symbols.Symbol, codeContext string) (*Node, error) {
	if sym.File == "" {
		return nil, errNoFile
	}
	if sym.Name == "" {
		return nil, errors.New("symbol has no name")
	}
	if codeContext == "" {
		codeContext = symbols.NoContext
	}
	return &Node{
		id:        IDOf(sym),
		symbol:    sym,
		signature: sym.Signature(),
		context:   codeContext,
		hasMore:   true,
	}, nil
}

func (n *Node) ID() MethodID { return n.id }
func (n *Node) Symbol() symbols.Symbol { return n.symbol }
func (n *Node) Signature() string { return n.signature }
func (n *Node) File() string { return n.symbol.File }
func (n *Node) Line() int { return n.symbol.Line }
func (n *Node) CodeContext() string { return n.context }
func (n *Node) DisplayText() string { return fmt.Sprintf("%s (%s:%d)", n.signature, n.symbol.File, n.symbol.Line) }
func (n *Node) String() string { return n.DisplayText() }
func (n *Node) Equal(other *Node) bool { return other != nil && n.id == other.id }

func (n *Node) State() LoadingState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

func (n *Node) Progress() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.progress
}

func (n *Node) ErrorMessage() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.errorMessage
}

func (n *Node) HasMoreCallers() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hasMore
}

func (n *Node) TaskID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.taskID
}

func (n *Node) IsUserExpanded() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.userExpanded
}

func (n *Node) IsLoading() bool {
	return n.State() == Loading
}

// CanExpand holds when more callers may exist and no discovery is in flight
func (n *Node) CanExpand() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hasMore && n.state != Loading
}

// Callers returns a copy of the caller list
func (n *Node) Callers() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Node, len(n.callers))
	copy(out, n.callers)
	return out
}

func (n *Node) CallerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.callers)
}

// Apply runs e through Transition and updates the fields that depend on the new state.
// msg is recorded only when the node enters ERROR.
func (n *Node) Apply(e Event, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	next, err := Transition(n.state, e)
	if err != nil {
		return err
	}
	n.enter(next, msg)
	return nil
}

// enter applies per-state effects; n.mu must be held
func (n *Node) enter(next LoadingState, msg string) {
	n.state = next
	switch next {
	case Loaded:
		n.hasMore = len(n.callers) > 0
		n.progress = 1.0
		n.errorMessage = ""
	case Error:
		n.progress = 0
		n.errorMessage = msg
	default:
		n.progress = 0
		n.errorMessage = ""
	}
}

// Complete replaces the callers and marks the node LOADED
func (n *Node) Complete(callers []*Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callers = dedup(callers)
	n.enter(Loaded, "")
}

// SetCallers replaces the caller list without touching the state
func (n *Node) SetCallers(callers []*Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callers = dedup(callers)
}

// AddCaller appends c unless a caller with the same id is present
func (n *Node) AddCaller(c *Node) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.callers {
		if existing.id == c.id {
			return false
		}
	}
	n.callers = append(n.callers, c)
	return true
}

// SetProgress records discovery progress, clamped to [0, 1]
func (n *Node) SetProgress(p float64) {
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	n.mu.Lock()
	n.progress = p
	n.mu.Unlock()
}

func (n *Node) SetHasMoreCallers(v bool) {
	n.mu.Lock()
	n.hasMore = v
	n.mu.Unlock()
}

func (n *Node) SetTaskID(id string) {
	n.mu.Lock()
	n.taskID = id
	n.mu.Unlock()
}

func (n *Node) SetUserExpanded(v bool) {
	n.mu.Lock()
	n.userExpanded = v
	n.mu.Unlock()
}

// MarkExpandable flags the node as worth searching
func (n *Node) MarkExpandable() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == Loading {
		return
	}
	n.hasMore = true
	n.enter(Expandable, "")
}

// ResetForRetry returns the node to NOT_LOADED and forgets any task
func (n *Node) ResetForRetry() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enter(NotLoaded, "")
	n.taskID = ""
}

// Snapshot returns a detached copy: same method, no callers, NOT_LOADED, no
// progress, error or task. hasMoreCallers is preserved.
func (n *Node) Snapshot() *Node {
	n.mu.RLock()
	hasMore := n.hasMore
	n.mu.RUnlock()
	return &Node{
		id:        n.id,
		symbol:    n.symbol,
		signature: n.signature,
		context:   n.context,
		hasMore:   hasMore,
	}
}

// SnapshotAll snapshots each node of the slice
func SnapshotAll(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Snapshot()
	}
	return out
}

// dedup keeps the first node of each id
func dedup(nodes []*Node) []*Node {
	seen := make(map[MethodID]struct{}, len(nodes))
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, ok := seen[n.id]; ok {
			continue
		}
		seen[n.id] = struct{}{}
		out = append(out, n)
	}
	return out
}
