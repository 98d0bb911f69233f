package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConfigs_ExclusionsMerge(t *testing.T) {
	base := &Config{Exclude: []string{"**/vendor/**", "**/real_projects/**"}}
	project := &Config{Exclude: []string{"**/generated/**", "**/vendor/**"}}

	merged := mergeConfigs(base, project)

	assert.Equal(t, []string{"**/vendor/**", "**/real_projects/**", "**/generated/**"}, merged.Exclude)
}

func TestMergeConfigs_ProjectIncludesOverride(t *testing.T) {
	base := &Config{Include: []string{"**/*.php"}}
	project := &Config{Include: []string{"src/**/*.php"}}
	assert.Equal(t, []string{"src/**/*.php"}, mergeConfigs(base, project).Include)

	project.Include = nil
	assert.Equal(t, []string{"**/*.php"}, mergeConfigs(base, project).Include)
}

func TestMergeConfigs_ProjectSettingsWin(t *testing.T) {
	base := Default("/home/dev")
	base.Discovery.MaxDepth = 3
	project := Default("/srv/shop")
	project.Discovery.MaxDepth = 7

	merged := mergeConfigs(base, project)
	assert.Equal(t, 7, merged.Discovery.MaxDepth)
	assert.Equal(t, "/srv/shop", merged.Project.Root)
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Project.Root)
	assert.Equal(t, filepath.Base(dir), cfg.Project.Name)
	assert.Equal(t, []string{"**/*.php"}, cfg.Include)
}

func TestLoad_GlobalAndProject(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, KDLFileName), []byte(`index { exclude "**/fixtures/**" }`), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KDLFileName), []byte(`discovery { max_depth 4 }`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Discovery.MaxDepth)
	assert.Contains(t, cfg.Exclude, "**/fixtures/**", "global exclusions survive the merge")
	assert.Equal(t, dir, cfg.Project.Root)
}

func TestBuildArtifactDetector(t *testing.T) {
	dir := t.TempDir()
	composer := `{
  "config": {"vendor-dir": "lib/vendor", "bin-dir": "./tools/bin/"},
  "extra": {"installer-paths": {"wp/plugins/{$name}/": ["type:wordpress-plugin"]}}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "composer.json"), []byte(composer), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "artisan"), []byte("#!/usr/bin/env php"), 0o755))

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.ElementsMatch(t, []string{
		"**/lib/vendor/**",
		"**/tools/bin/**",
		"**/wp/plugins/**",
		"**/storage/**",
	}, patterns)
}

func TestDeduplicatePatterns(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, DeduplicatePatterns([]string{"a", "b", "a"}))
	assert.Empty(t, DeduplicatePatterns(nil))
}
