package calltree

import "sync"

// Registry is the identity map from MethodID to the canonical node of a tree.
// Every branch that shows a method points at the same registered node.
type Registry struct {
	mu    sync.RWMutex
	nodes map[MethodID]*Node
}

func NewRegistry() *Registry {
	return &Registry{nodes: make(map[MethodID]*Node)}
}

// Intern returns the canonical node for n's id, registering n if none exists
func (r *Registry) Intern(n *Node) *Node {
	if n == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.nodes[n.id]; ok {
		return existing
	}
	r.nodes[n.id] = n
	return n
}

// InternAll interns each node, preserving order
func (r *Registry) InternAll(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if c := r.Intern(n); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Get(id MethodID) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

// InFile returns the registered nodes declared in file
func (r *Registry) InFile(file string) []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Node
	for _, n := range r.nodes {
		if n.symbol.File == file {
			out = append(out, n)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.nodes = make(map[MethodID]*Node)
	r.mu.Unlock()
}
