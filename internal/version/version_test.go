package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildInfo(t *testing.T) {
	withVCS := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			GoVersion: "go1.24.2",
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "3f2c1ab9d0e4f5a6b7c8"},
				{Key: "vcs.modified", Value: "true"},
			},
		}, true
	}
	noInfo := func() (*debug.BuildInfo, bool) { return nil, false }

	tests := []struct {
		name   string
		commit string
		read   func() (*debug.BuildInfo, bool)
		want   string
	}{
		{"vcs revision", "", withVCS, "1.0.0 (3f2c1ab, modified, go1.24.2)"},
		{"stamped commit wins", "abc", withVCS, "1.0.0 (abc, modified, go1.24.2)"},
		{"no build info", "", noInfo, "1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fromBuildInfo("1.0.0", tt.commit, tt.read).String())
		})
	}
}

func TestCurrentIsStable(t *testing.T) {
	b := Current()
	assert.Equal(t, Version, b.Version)
	assert.Equal(t, b, Current())
}
