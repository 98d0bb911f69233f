package phpindex

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/standardbeagle/callmap/internal/config"
	"github.com/standardbeagle/callmap/internal/debug"
)

// matcher decides which project-relative paths belong in the index
type matcher struct {
	include []string
	exclude []string
	gi      *ignore.GitIgnore
	maxSize int64
}

func newMatcher(root string, cfg *config.Config) *matcher {
	m := &matcher{
		include: cfg.Include,
		exclude: cfg.Exclude,
		maxSize: cfg.Index.MaxFileSize,
	}
	if cfg.Index.RespectGitignore {
		gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
		if err == nil {
			m.gi = gi
		} else if !os.IsNotExist(err) {
			debug.LogIndex("ignoring unreadable .gitignore: %v", err)
		}
	}
	return m
}

// file reports whether the slash-separated relative path should be parsed
func (m *matcher) file(rel string) bool {
	if hidden(rel) || !m.included(rel) {
		return false
	}
	for _, p := range m.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return m.gi == nil || !m.gi.MatchesPath(rel)
}

func (m *matcher) included(rel string) bool {
	if len(m.include) == 0 {
		return strings.EqualFold(path.Ext(rel), ".php")
	}
	for _, p := range m.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// dir reports whether the walker should descend into rel
func (m *matcher) dir(rel string) bool {
	if rel == "." {
		return true
	}
	if strings.HasPrefix(path.Base(rel), ".") {
		return false
	}
	for _, p := range m.exclude {
		dirPattern := strings.TrimSuffix(p, "/**")
		if ok, _ := doublestar.Match(dirPattern, rel); ok {
			return false
		}
	}
	return m.gi == nil || !m.gi.MatchesPath(rel+"/")
}

// hidden reports whether any directory component starts with a dot
func hidden(rel string) bool {
	dir := path.Dir(rel)
	if dir == "." {
		return false
	}
	for _, part := range strings.Split(dir, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func (m *matcher) tooLarge(size int64) bool {
	return m.maxSize > 0 && size > m.maxSize
}
