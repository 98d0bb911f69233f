package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("", "/srv/shop")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, []string{"**/*.php"}, cfg.Include)
	assert.Contains(t, cfg.Exclude, "**/vendor/**")
	assert.Equal(t, 3, cfg.Discovery.MaxConcurrentTasks)
	assert.Equal(t, 30000, cfg.Discovery.TaskTimeoutMs)
	assert.Equal(t, 10, cfg.Discovery.MaxDepth)
	assert.True(t, cfg.Discovery.CycleGuard)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, 1000, cfg.Cache.Capacity)
	assert.False(t, cfg.Watch.Enabled)
}

func TestParseKDL_AllSections(t *testing.T) {
	kdlContent := `
project {
    root "app"
    name "shop"
}
index {
    include "src/**/*.php" "lib/**/*.php"
    exclude "legacy/**"
    max_file_size "4MB"
    respect_gitignore false
    workers 2
}
discovery {
    max_concurrent_tasks 5
    task_timeout_ms 10000
    idle_wait_ms 50
    max_depth 6
    auto_expand_depth 1
    auto_expand_fanout 2
    yield_every 20
    yield_pause_ms 5
    cycle_guard false
}
cache {
    ttl_seconds 60
    capacity 200
    cleanup_interval_seconds 0
}
watch {
    enabled true
    debounce_ms 150
}
metrics {
    addr "127.0.0.1:9464"
}
`
	cfg, err := parseKDL(kdlContent, "/srv")
	require.NoError(t, err)

	assert.Equal(t, "app", cfg.Project.Root)
	assert.Equal(t, "shop", cfg.Project.Name)
	assert.Equal(t, []string{"src/**/*.php", "lib/**/*.php"}, cfg.Include)
	assert.Contains(t, cfg.Exclude, "legacy/**")
	assert.Contains(t, cfg.Exclude, "**/vendor/**", "defaults are kept")
	assert.Equal(t, int64(4*1024*1024), cfg.Index.MaxFileSize)
	assert.False(t, cfg.Index.RespectGitignore)
	assert.Equal(t, 2, cfg.Index.Workers)

	d := cfg.Discovery
	assert.Equal(t, 5, d.MaxConcurrentTasks)
	assert.Equal(t, 10000, d.TaskTimeoutMs)
	assert.Equal(t, 50, d.IdleWaitMs)
	assert.Equal(t, 6, d.MaxDepth)
	assert.Equal(t, 1, d.AutoExpandDepth)
	assert.Equal(t, 2, d.AutoExpandFanout)
	assert.Equal(t, 20, d.YieldEvery)
	assert.Equal(t, 5, d.YieldPauseMs)
	assert.False(t, d.CycleGuard)

	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
	assert.Equal(t, 200, cfg.Cache.Capacity)
	assert.Zero(t, cfg.Cache.CleanupIntervalSeconds)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 150, cfg.Watch.DebounceMs)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
}

func TestParseKDL_BlockExclusions(t *testing.T) {
	kdlContent := `
exclude {
    "generated/**"
    "cache/**"
}
`
	cfg, err := parseKDL(kdlContent, "/srv")
	require.NoError(t, err)
	assert.Contains(t, cfg.Exclude, "generated/**")
	assert.Contains(t, cfg.Exclude, "cache/**")
}

func TestParseKDL_InvalidDocument(t *testing.T) {
	_, err := parseKDL(`index { max_file_size "4MB"`, "/srv")
	assert.Error(t, err)
}

func TestLoadKDL_ResolvesRelativeRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KDLFileName), []byte(`project { root "src" }`), 0o644))

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(dir, "src"), cfg.Project.Root)
	assert.Equal(t, "src", cfg.Project.Name)
}

func TestLoadKDL_Missing(t *testing.T) {
	cfg, err := LoadKDL(t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"512", 512},
		{"10B", 10},
		{"500KB", 500 * 1024},
		{"2MB", 2 * 1024 * 1024},
		{"1.5mb", int64(1.5 * 1024 * 1024)},
		{"1GB", 1024 * 1024 * 1024},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseSize("lots")
	assert.Error(t, err)
}
