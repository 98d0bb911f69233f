package phpindex

import (
	"context"
	"strings"

	cmerrors "github.com/standardbeagle/callmap/internal/errors"
	"github.com/standardbeagle/callmap/internal/symbols"
)

var (
	_ symbols.Resolver        = (*Index)(nil)
	_ symbols.ContextProvider = (*Index)(nil)
)

// contextRadius is the number of lines shown on each side of a declaration
const contextRadius = 3

// FindReferences returns call sites whose callee name matches sym. Methods
// match member and scoped calls, constructors also match "new Class",
// functions match plain function calls.
func (idx *Index) FindReferences(ctx context.Context, sym symbols.Symbol) ([]symbols.Reference, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var refs []symbols.Reference
	for _, file := range postingsLocked(idx.calledIn, sym.Name) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := idx.files[file]
		for _, c := range entry.calls {
			if !strings.EqualFold(c.name, sym.Name) || !matchesKind(c, sym) {
				continue
			}
			refs = append(refs, symbols.Reference{
				File:   file,
				Line:   c.line,
				Column: c.column,
				Offset: c.offset,
				Callee: c.name,
			})
		}
	}
	return refs, nil
}

func matchesKind(c callSite, sym symbols.Symbol) bool {
	switch c.kind {
	case callMember, callScoped:
		return sym.Kind == symbols.KindMethod
	case callNew:
		return sym.Kind == symbols.KindMethod && (sym.Class == "" || strings.EqualFold(c.class, sym.Class))
	case callFunction:
		return sym.Kind == symbols.KindFunction
	}
	return false
}

// ContainingDeclaration returns the innermost method or function whose body
// spans ref. Top-level code has no containing declaration.
func (idx *Index) ContainingDeclaration(ctx context.Context, ref symbols.Reference) (symbols.Symbol, bool, error) {
	if err := ctx.Err(); err != nil {
		return symbols.Symbol{}, false, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entry, ok := idx.files[ref.File]
	if !ok {
		return symbols.Symbol{}, false, cmerrors.NewIndexError("resolve", ref.File, ErrFileNotIndexed)
	}
	var best *declaration
	for i := range entry.decls {
		d := &entry.decls[i]
		if ref.Offset < d.sym.StartByte || ref.Offset >= d.sym.EndByte {
			continue
		}
		if best == nil || d.sym.EndByte-d.sym.StartByte < best.sym.EndByte-best.sym.StartByte {
			best = d
		}
	}
	if best == nil {
		return symbols.Symbol{}, false, nil
	}
	return best.sym, true, nil
}

// CodeContext returns the source lines around the declaration
func (idx *Index) CodeContext(sym symbols.Symbol) (string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entry, ok := idx.files[idx.Key(sym.File)]
	if !ok || sym.Line < 1 || sym.Line > len(entry.lines) {
		return symbols.NoContext, nil
	}
	first := max(1, sym.Line-contextRadius)
	last := min(len(entry.lines), sym.Line+contextRadius)

	start := entry.lines[first-1]
	end := len(entry.content)
	if last < len(entry.lines) {
		end = entry.lines[last]
	}
	return strings.TrimRight(string(entry.content[start:end]), "\r\n"), nil
}
