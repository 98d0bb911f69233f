// Package version identifies the running callmap binary
package version

import (
	"runtime/debug"
	"strings"
	"sync"
)

// Version is the release of callmap. Commit may be stamped at link time:
//
//	go build -ldflags "-X github.com/standardbeagle/callmap/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version = "0.2.0"
	Commit  = ""
)

// Build describes how the binary was produced
type Build struct {
	Version   string
	Commit    string
	Modified  bool
	GoVersion string
}

var (
	current     Build
	currentOnce sync.Once
)

// Current returns the build of the running binary. Without a stamped commit the
// VCS revision recorded by the go tool is used.
func Current() Build {
	currentOnce.Do(func() {
		current = fromBuildInfo(Version, Commit, debug.ReadBuildInfo)
	})
	return current
}

func fromBuildInfo(ver, commit string, read func() (*debug.BuildInfo, bool)) Build {
	b := Build{Version: ver, Commit: commit}
	info, ok := read()
	if !ok {
		return b
	}
	b.GoVersion = info.GoVersion
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// ShortCommit is the first 7 characters of the commit, or "" when unknown
func (b Build) ShortCommit() string {
	if len(b.Commit) > 7 {
		return b.Commit[:7]
	}
	return b.Commit
}

// String renders e.g. "0.2.0 (3f2c1ab, modified, go1.24.2)"
func (b Build) String() string {
	var extra []string
	if c := b.ShortCommit(); c != "" {
		extra = append(extra, c)
	}
	if b.Modified {
		extra = append(extra, "modified")
	}
	if b.GoVersion != "" {
		extra = append(extra, b.GoVersion)
	}
	if len(extra) == 0 {
		return b.Version
	}
	return b.Version + " (" + strings.Join(extra, ", ") + ")"
}
