package phpindex

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/callmap/internal/symbols"
)

// MinSuggestionScore is the Jaro-Winkler similarity a suggestion must exceed
const MinSuggestionScore = 0.7

// Suggestion is a declaration ranked by name similarity
type Suggestion struct {
	Symbol symbols.Symbol
	Score  float32
}

// Lookup resolves a query to declarations. Accepted forms are
// "Class::method", "method", "function" and "path/to/File.php:line".
func (idx *Index) Lookup(query string) ([]symbols.Symbol, error) {
	q := strings.TrimSuffix(strings.TrimSpace(query), "()")
	if q == "" {
		return nil, fmt.Errorf("%w: empty query", ErrSymbolNotFound)
	}
	if file, line, ok := splitFileLine(q); ok {
		sym, found := idx.declarationAt(file, line)
		if !found {
			return nil, fmt.Errorf("%w: no declaration at %s", ErrSymbolNotFound, q)
		}
		return []symbols.Symbol{sym}, nil
	}

	class, name := "", q
	if i := strings.LastIndex(q, "::"); i >= 0 {
		class, name = lastSegment(q[:i]), q[i+2:]
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []symbols.Symbol
	for _, file := range postingsLocked(idx.declaredIn, name) {
		for _, d := range idx.files[file].decls {
			if !strings.EqualFold(d.sym.Name, name) {
				continue
			}
			if class != "" && !strings.EqualFold(d.sym.Class, class) {
				continue
			}
			out = append(out, d.sym)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, q)
	}
	return out, nil
}

// splitFileLine parses "file:line". "Class::method" is not a file reference.
func splitFileLine(q string) (string, int, bool) {
	i := strings.LastIndexByte(q, ':')
	if i <= 0 || q[i-1] == ':' {
		return "", 0, false
	}
	line, err := strconv.Atoi(q[i+1:])
	if err != nil || line < 1 {
		return "", 0, false
	}
	return q[:i], line, true
}

// declarationAt returns the innermost declaration spanning line
func (idx *Index) declarationAt(file string, line int) (symbols.Symbol, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.files[idx.Key(file)]
	if !ok {
		return symbols.Symbol{}, false
	}
	var best *declaration
	for i := range entry.decls {
		d := &entry.decls[i]
		if line < d.sym.Line || line > d.endLine {
			continue
		}
		if best == nil || d.endLine-d.sym.Line < best.endLine-best.sym.Line {
			best = d
		}
	}
	if best == nil {
		return symbols.Symbol{}, false
	}
	return best.sym, true
}

// Suggest ranks declarations by similarity to query and returns up to n of
// them, one per signature.
func (idx *Index) Suggest(query string, n int) []Suggestion {
	q := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(query), "()"))
	if q == "" || n <= 0 {
		return nil
	}

	idx.mu.RLock()
	best := make(map[string]Suggestion)
	for _, f := range idx.files {
		for _, d := range f.decls {
			score := similarity(q, d.sym)
			if score <= MinSuggestionScore {
				continue
			}
			sig := d.sym.Signature()
			if prev, ok := best[sig]; !ok || score > prev.Score {
				best[sig] = Suggestion{Symbol: d.sym, Score: score}
			}
		}
	}
	idx.mu.RUnlock()

	out := make([]Suggestion, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol.Signature() < out[j].Symbol.Signature()
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func similarity(q string, sym symbols.Symbol) float32 {
	candidates := []string{strings.ToLower(sym.Name)}
	if strings.Contains(q, "::") {
		candidates = append(candidates, strings.ToLower(strings.TrimSuffix(sym.Signature(), "()")))
	}
	var best float32
	for _, c := range candidates {
		s, err := edlib.StringsSimilarity(q, c, edlib.JaroWinkler)
		if err == nil && s > best {
			best = s
		}
	}
	return best
}

// Symbols lists declarations whose signature contains filter, ignoring case.
// An empty filter lists everything.
func (idx *Index) Symbols(filter string) []symbols.Symbol {
	filter = strings.ToLower(filter)
	idx.mu.RLock()
	var out []symbols.Symbol
	for _, f := range idx.files {
		for _, d := range f.decls {
			if filter == "" || strings.Contains(strings.ToLower(d.sym.Signature()), filter) {
				out = append(out, d.sym)
			}
		}
	}
	idx.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out
}
