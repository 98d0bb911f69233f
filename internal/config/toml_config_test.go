package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmerrors "github.com/standardbeagle/callmap/internal/errors"
)

func TestParseTOML(t *testing.T) {
	content := `
[project]
name = "billing"

[index]
include = ["app/**/*.php"]
exclude = ["app/Legacy/**"]
max_file_size = "1MB"
workers = 3

[discovery]
task_timeout_ms = 5000
cycle_guard = false

[cache]
capacity = 50

[watch]
enabled = true
`
	cfg, err := parseTOML([]byte(content), "/srv/billing")
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.Project.Name)
	assert.Equal(t, []string{"app/**/*.php"}, cfg.Include)
	assert.Contains(t, cfg.Exclude, "app/Legacy/**")
	assert.Equal(t, int64(1024*1024), cfg.Index.MaxFileSize)
	assert.Equal(t, 3, cfg.Index.Workers)
	assert.True(t, cfg.Index.RespectGitignore, "unset keys keep defaults")
	assert.Equal(t, 5000, cfg.Discovery.TaskTimeoutMs)
	assert.Equal(t, 3, cfg.Discovery.MaxConcurrentTasks)
	assert.False(t, cfg.Discovery.CycleGuard)
	assert.Equal(t, 50, cfg.Cache.Capacity)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.True(t, cfg.Watch.Enabled)
}

func TestParseTOML_BadSize(t *testing.T) {
	_, err := parseTOML([]byte("[index]\nmax_file_size = \"big\"\n"), "/srv")
	require.Error(t, err)
	var cfgErr *cmerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_PrefersKDLOverTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLFileName), []byte("[project]\nname = \"from-toml\"\n"), 0o644))

	cfg, err := loadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-toml", cfg.Project.Name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, KDLFileName), []byte(`project { name "from-kdl" }`), 0o644))
	cfg, err = loadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-kdl", cfg.Project.Name)
}

func TestLoadFile_ByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "callmap.toml")
	require.NoError(t, os.WriteFile(path, []byte("[discovery]\nmax_depth = 4\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Discovery.MaxDepth)
	assert.Equal(t, dir, cfg.Project.Root)
}
