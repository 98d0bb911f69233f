// Package testhelpers provides shared utilities for testing callmap
package testhelpers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/standardbeagle/callmap/internal/symbols"
)

// FakeResolver is an in-memory symbols.Resolver. References are scripted per
// callee and each reference remembers the declaration that contains it.
//
//	r := testhelpers.NewFakeResolver()
//	a := testhelpers.Method("A", "m", "A.php", 3)
//	r.AddCall(a, testhelpers.Method("B", "x", "B.php", 10))
type FakeResolver struct {
	mu       sync.Mutex
	refs     map[string][]symbols.Reference
	decls    map[refKey]symbols.Symbol
	failures map[refKey]error
	findErrs map[string]error
	gates    map[string]*gate
	calls    map[string]int
	offset   uint
}

type refKey struct {
	file   string
	offset uint
}

type gate struct {
	release   chan struct{}
	ignoreCtx bool
}

func NewFakeResolver() *FakeResolver {
	return &FakeResolver{
		refs:     make(map[string][]symbols.Reference),
		decls:    make(map[refKey]symbols.Symbol),
		failures: make(map[refKey]error),
		findErrs: make(map[string]error),
		gates:    make(map[string]*gate),
		calls:    make(map[string]int),
	}
}

// Method builds a method symbol
func Method(class, name, file string, line int) symbols.Symbol {
	return symbols.Symbol{Name: name, Class: class, Kind: symbols.KindMethod, File: file, Line: line}
}

func key(s symbols.Symbol) string {
	return fmt.Sprintf("%s:%s:%d", s.File, strings.ToLower(s.Name), s.Line)
}

func (r *FakeResolver) nextRef(callee symbols.Symbol, file string, line int) symbols.Reference {
	r.offset++
	return symbols.Reference{File: file, Line: line, Column: 1, Offset: r.offset, Callee: callee.Name}
}

// AddCall records a reference to callee made from inside caller
func (r *FakeResolver) AddCall(callee, caller symbols.Symbol) symbols.Reference {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := r.nextRef(callee, caller.File, caller.Line+1)
	r.refs[key(callee)] = append(r.refs[key(callee)], ref)
	r.decls[refKey{ref.File, ref.Offset}] = caller
	return ref
}

// AddTopLevelReference records a reference to callee outside any declaration
func (r *FakeResolver) AddTopLevelReference(callee symbols.Symbol, file string, line int) symbols.Reference {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := r.nextRef(callee, file, line)
	r.refs[key(callee)] = append(r.refs[key(callee)], ref)
	return ref
}

// AddFailingReference records a reference to callee whose resolution returns err
func (r *FakeResolver) AddFailingReference(callee symbols.Symbol, err error) symbols.Reference {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := r.nextRef(callee, "broken.php", 1)
	r.refs[key(callee)] = append(r.refs[key(callee)], ref)
	r.failures[refKey{ref.File, ref.Offset}] = err
	return ref
}

// FailFind makes FindReferences for sym return err
func (r *FakeResolver) FailFind(sym symbols.Symbol, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findErrs[key(sym)] = err
}

// Block makes FindReferences for sym wait until release is called or its
// context ends.
func (r *FakeResolver) Block(sym symbols.Symbol) (release func()) {
	return r.block(sym, false)
}

// BlockIgnoringContext makes FindReferences for sym wait for release only
func (r *FakeResolver) BlockIgnoringContext(sym symbols.Symbol) (release func()) {
	return r.block(sym, true)
}

func (r *FakeResolver) block(sym symbols.Symbol, ignoreCtx bool) func() {
	g := &gate{release: make(chan struct{}), ignoreCtx: ignoreCtx}
	r.mu.Lock()
	r.gates[key(sym)] = g
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(g.release)
			r.mu.Lock()
			if r.gates[key(sym)] == g {
				delete(r.gates, key(sym))
			}
			r.mu.Unlock()
		})
	}
}

// FindCalls reports how many times FindReferences ran for sym
func (r *FakeResolver) FindCalls(sym symbols.Symbol) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key(sym)]
}

func (r *FakeResolver) FindReferences(ctx context.Context, sym symbols.Symbol) ([]symbols.Reference, error) {
	k := key(sym)
	r.mu.Lock()
	r.calls[k]++
	g := r.gates[k]
	err := r.findErrs[k]
	refs := append([]symbols.Reference(nil), r.refs[k]...)
	r.mu.Unlock()

	if g != nil {
		if g.ignoreCtx {
			<-g.release
		} else {
			select {
			case <-g.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *FakeResolver) ContainingDeclaration(_ context.Context, ref symbols.Reference) (symbols.Symbol, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := refKey{ref.File, ref.Offset}
	if err, ok := r.failures[k]; ok {
		return symbols.Symbol{}, false, err
	}
	decl, ok := r.decls[k]
	return decl, ok, nil
}

// CodeContext returns a one-line stand-in for the declaration source
func (r *FakeResolver) CodeContext(sym symbols.Symbol) (string, error) {
	return "function " + sym.Name + "() {}", nil
}
