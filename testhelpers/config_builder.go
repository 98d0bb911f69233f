package testhelpers

import (
	"github.com/standardbeagle/callmap/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with fast timings
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(project.Root).
//		WithExclusions("**/legacy/**").
//		WithTaskTimeoutMs(200).
//		Build()
type TestConfigBuilder struct {
	cfg *config.Config
}

// NewTestConfigBuilder starts from the defaults with gitignore handling off,
// a short idle wait and no yield pause
func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	cfg := config.Default(projectRoot)
	cfg.Project.Name = "test-project"
	cfg.Index.RespectGitignore = false
	cfg.Index.Workers = 2
	cfg.Discovery.TaskTimeoutMs = 5000
	cfg.Discovery.IdleWaitMs = 5
	cfg.Discovery.YieldPauseMs = 0
	cfg.Cache.CleanupIntervalSeconds = 0
	cfg.Watch.DebounceMs = 20
	return &TestConfigBuilder{cfg: cfg}
}

// WithExclusions adds additional exclusion patterns
func (b *TestConfigBuilder) WithExclusions(patterns ...string) *TestConfigBuilder {
	b.cfg.Exclude = append(b.cfg.Exclude, patterns...)
	return b
}

// WithIncludePatterns sets the include patterns (replaces defaults)
func (b *TestConfigBuilder) WithIncludePatterns(patterns ...string) *TestConfigBuilder {
	b.cfg.Include = patterns
	return b
}

// WithGitignore turns .gitignore handling on or off
func (b *TestConfigBuilder) WithGitignore(respect bool) *TestConfigBuilder {
	b.cfg.Index.RespectGitignore = respect
	return b
}

func (b *TestConfigBuilder) WithMaxFileSize(bytes int64) *TestConfigBuilder {
	b.cfg.Index.MaxFileSize = bytes
	return b
}

func (b *TestConfigBuilder) WithTaskTimeoutMs(ms int) *TestConfigBuilder {
	b.cfg.Discovery.TaskTimeoutMs = ms
	return b
}

func (b *TestConfigBuilder) WithWatch(debounceMs int) *TestConfigBuilder {
	b.cfg.Watch.Enabled = true
	b.cfg.Watch.DebounceMs = debounceMs
	return b
}

// Build returns the config. Each call returns the same pointer.
func (b *TestConfigBuilder) Build() *config.Config {
	return b.cfg
}
