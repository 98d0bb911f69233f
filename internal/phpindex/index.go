// Package phpindex is an in-memory symbol table for a PHP project. It parses
// sources with tree-sitter and answers the reference queries the discovery
// engine asks through symbols.Resolver.
package phpindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/callmap/internal/config"
	"github.com/standardbeagle/callmap/internal/debug"
	cmerrors "github.com/standardbeagle/callmap/internal/errors"
	"github.com/standardbeagle/callmap/pkg/pathutil"
)

var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrFileNotIndexed = errors.New("file not indexed")

	errTooLarge = errors.New("file exceeds max_file_size")
)

// Index holds parsed declarations and call sites keyed by project-relative path
type Index struct {
	root    string
	match   *matcher
	workers int

	mu    sync.RWMutex
	files map[string]*fileEntry
	// lowercased name -> files that call it
	calledIn map[string]map[string]struct{}
	// lowercased name -> files that declare it
	declaredIn map[string]map[string]struct{}
}

type fileEntry struct {
	path    string
	hash    uint64
	content []byte
	lines   []int // byte offset of each line start
	decls   []declaration
	calls   []callSite
}

// Stats summarizes index contents
type Stats struct {
	Files        int
	Declarations int
	CallSites    int
}

// New returns an empty index for cfg. Use Build to populate it from disk.
func New(cfg *config.Config) (*Index, error) {
	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, cmerrors.NewIndexError("resolve root", cfg.Project.Root, err)
	}
	workers := cfg.Index.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Index{
		root:       root,
		match:      newMatcher(root, cfg),
		workers:    workers,
		files:      make(map[string]*fileEntry),
		calledIn:   make(map[string]map[string]struct{}),
		declaredIn: make(map[string]map[string]struct{}),
	}, nil
}

// Build walks the project root and parses every matching file in parallel.
// Files that fail to read or parse are logged and left out.
func Build(ctx context.Context, cfg *config.Config) (*Index, error) {
	idx, err := New(cfg)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(idx.root)
	if err != nil {
		return nil, cmerrors.NewIndexError("build", idx.root, err)
	}
	if !info.IsDir() {
		return nil, cmerrors.NewIndexError("build", idx.root, fmt.Errorf("not a directory"))
	}

	paths, err := idx.scan(ctx)
	if err != nil {
		return nil, cmerrors.NewIndexError("scan", idx.root, err)
	}

	entries := make([]*fileEntry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := idx.load(rel)
			if err != nil {
				debug.LogIndex("skipping %s: %v", rel, err)
				return nil
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, cmerrors.NewIndexError("build", idx.root, err)
	}

	idx.mu.Lock()
	for _, e := range entries {
		if e != nil {
			idx.putLocked(e)
		}
	}
	idx.mu.Unlock()

	st := idx.Stats()
	debug.LogIndex("indexed %d files: %d declarations, %d call sites", st.Files, st.Declarations, st.CallSites)
	return idx, nil
}

func (idx *Index) scan(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(idx.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel := pathutil.Key(p, idx.root)
		if d.IsDir() {
			if !idx.match.dir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if idx.match.file(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	return paths, err
}

func (idx *Index) load(rel string) (*fileEntry, error) {
	abs := pathutil.ToAbsolute(rel, idx.root)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if idx.match.tooLarge(info.Size()) {
		return nil, errTooLarge
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	pf, err := parsePHP(rel, content)
	if err != nil {
		return nil, err
	}
	return &fileEntry{
		path:    rel,
		hash:    xxhash.Sum64(content),
		content: content,
		lines:   lineStarts(content),
		decls:   pf.decls,
		calls:   pf.calls,
	}, nil
}

func lineStarts(content []byte) []int {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' && i+1 < len(content) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// Root returns the absolute project root
func (idx *Index) Root() string {
	return idx.root
}

// Key converts an absolute or relative path to the form files are stored under
func (idx *Index) Key(path string) string {
	return pathutil.Key(path, idx.root)
}

// ShouldIndex reports whether path matches the include, exclude and gitignore rules
func (idx *Index) ShouldIndex(path string) bool {
	return idx.match.file(idx.Key(path))
}

// ShouldWatchDir reports whether the directory at path is walked for sources
func (idx *Index) ShouldWatchDir(path string) bool {
	return idx.match.dir(idx.Key(path))
}

// Reindex re-parses one file. It returns the lowercased names declared or
// called in the old or new content, or nil when the content is unchanged.
// A file that is gone, too large or no longer matched is removed.
func (idx *Index) Reindex(path string) ([]string, error) {
	rel := idx.Key(path)
	if !idx.match.file(rel) {
		return idx.Remove(rel), nil
	}
	entry, err := idx.load(rel)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errTooLarge) {
		return idx.Remove(rel), nil
	}
	if err != nil {
		return nil, cmerrors.NewIndexError("reindex", rel, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	old := idx.files[rel]
	if old != nil && old.hash == entry.hash {
		return nil, nil
	}
	names := entry.names()
	if old != nil {
		names = mergeNames(names, old.names())
		idx.dropLocked(old)
	}
	idx.putLocked(entry)
	debug.LogIndex("reindexed %s (%d declarations)", rel, len(entry.decls))
	return names, nil
}

// Remove drops path from the index and returns the names it declared or called
func (idx *Index) Remove(path string) []string {
	rel := idx.Key(path)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	old := idx.files[rel]
	if old == nil {
		return nil
	}
	idx.dropLocked(old)
	debug.LogIndex("removed %s", rel)
	return old.names()
}

// Stats returns current counts
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	st := Stats{Files: len(idx.files)}
	for _, f := range idx.files {
		st.Declarations += len(f.decls)
		st.CallSites += len(f.calls)
	}
	return st
}

func (idx *Index) putLocked(e *fileEntry) {
	idx.files[e.path] = e
	for _, c := range e.calls {
		addPosting(idx.calledIn, strings.ToLower(c.name), e.path)
	}
	for _, d := range e.decls {
		addPosting(idx.declaredIn, strings.ToLower(d.sym.Name), e.path)
	}
}

func (idx *Index) dropLocked(e *fileEntry) {
	delete(idx.files, e.path)
	for _, c := range e.calls {
		removePosting(idx.calledIn, strings.ToLower(c.name), e.path)
	}
	for _, d := range e.decls {
		removePosting(idx.declaredIn, strings.ToLower(d.sym.Name), e.path)
	}
}

func addPosting(m map[string]map[string]struct{}, name, file string) {
	files, ok := m[name]
	if !ok {
		files = make(map[string]struct{})
		m[name] = files
	}
	files[file] = struct{}{}
}

func removePosting(m map[string]map[string]struct{}, name, file string) {
	if files, ok := m[name]; ok {
		delete(files, file)
		if len(files) == 0 {
			delete(m, name)
		}
	}
}

// postingsLocked returns the files holding name in sorted order
func postingsLocked(m map[string]map[string]struct{}, name string) []string {
	files := m[strings.ToLower(name)]
	out := make([]string, 0, len(files))
	for f := range files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (e *fileEntry) names() []string {
	seen := make(map[string]struct{}, len(e.decls)+len(e.calls))
	for _, d := range e.decls {
		seen[strings.ToLower(d.sym.Name)] = struct{}{}
	}
	for _, c := range e.calls {
		seen[strings.ToLower(c.name)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, n := range append(append([]string{}, a...), b...) {
		seen[n] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
