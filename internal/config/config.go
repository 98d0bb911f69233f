package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// File names searched in the home and project directories
const (
	KDLFileName  = ".callmap.kdl"
	TOMLFileName = ".callmap.toml"
)

// Default limits. They mirror the discovery engine defaults.
const (
	DefaultMaxFileSize        = 2 * 1024 * 1024
	DefaultMaxConcurrentTasks = 3
	DefaultTaskTimeoutMs      = 30000
	DefaultIdleWaitMs         = 100
	DefaultMaxDepth           = 10
	DefaultAutoExpandDepth    = 2
	DefaultAutoExpandFanout   = 3
	DefaultYieldEvery         = 10
	DefaultYieldPauseMs       = 10
	DefaultCacheTTLSeconds    = 300
	DefaultCacheCapacity      = 1000
	DefaultCleanupSeconds     = 60
	DefaultWatchDebounceMs    = 200
)

type Config struct {
	Version   int
	Project   Project
	Index     Index
	Discovery Discovery
	Cache     Cache
	Watch     Watch
	Metrics   Metrics
	Include   []string
	Exclude   []string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize      int64
	RespectGitignore bool // Honor the project .gitignore
	Workers          int  // Parallel parse workers; 0 = NumCPU
}

type Discovery struct {
	MaxConcurrentTasks int
	TaskTimeoutMs      int
	IdleWaitMs         int
	MaxDepth           int
	AutoExpandDepth    int // Pre-expand callers while depth is below this
	AutoExpandFanout   int // Callers pre-expanded per node
	YieldEvery         int // References processed between pauses
	YieldPauseMs       int
	CycleGuard         bool
}

func (d Discovery) TaskTimeout() time.Duration {
	return time.Duration(d.TaskTimeoutMs) * time.Millisecond
}

func (d Discovery) IdleWait() time.Duration {
	return time.Duration(d.IdleWaitMs) * time.Millisecond
}

func (d Discovery) YieldPause() time.Duration {
	return time.Duration(d.YieldPauseMs) * time.Millisecond
}

type Cache struct {
	TTLSeconds             int
	Capacity               int
	CleanupIntervalSeconds int
}

func (c Cache) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c Cache) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

type Watch struct {
	Enabled    bool
	DebounceMs int
}

func (w Watch) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

type Metrics struct {
	Addr string // Listen address for /metrics; empty disables the endpoint
}

// Default returns the built-in configuration rooted at root
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root: root,
			Name: filepath.Base(root),
		},
		Index: Index{
			MaxFileSize:      DefaultMaxFileSize,
			RespectGitignore: true,
			Workers:          runtime.NumCPU(),
		},
		Discovery: Discovery{
			MaxConcurrentTasks: DefaultMaxConcurrentTasks,
			TaskTimeoutMs:      DefaultTaskTimeoutMs,
			IdleWaitMs:         DefaultIdleWaitMs,
			MaxDepth:           DefaultMaxDepth,
			AutoExpandDepth:    DefaultAutoExpandDepth,
			AutoExpandFanout:   DefaultAutoExpandFanout,
			YieldEvery:         DefaultYieldEvery,
			YieldPauseMs:       DefaultYieldPauseMs,
			CycleGuard:         true,
		},
		Cache: Cache{
			TTLSeconds:             DefaultCacheTTLSeconds,
			Capacity:               DefaultCacheCapacity,
			CleanupIntervalSeconds: DefaultCleanupSeconds,
		},
		Watch: Watch{
			Enabled:    false,
			DebounceMs: DefaultWatchDebounceMs,
		},
		Include: []string{"**/*.php"},
		Exclude: defaultExclusions(),
	}
}

func defaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/.idea/**",
		"**/vendor/**",
		"**/node_modules/**",
		"**/var/cache/**",
		"**/storage/framework/**",
		"**/bootstrap/cache/**",
		"**/*.blade.php",
	}
}

// Load resolves the configuration for the project at rootDir: built-in
// defaults, then ~/.callmap.kdl, then the project .callmap.kdl or .callmap.toml.
func Load(rootDir string) (*Config, error) {
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && filepath.Clean(homeDir) != absRoot {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	projectConfig, err := loadProject(absRoot)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch {
	case baseConfig != nil && projectConfig != nil:
		cfg = mergeConfigs(baseConfig, projectConfig)
	case projectConfig != nil:
		cfg = projectConfig
	case baseConfig != nil:
		baseConfig.Project.Root = absRoot
		baseConfig.Project.Name = filepath.Base(absRoot)
		cfg = baseConfig
	default:
		cfg = Default(absRoot)
	}

	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

func loadProject(root string) (*Config, error) {
	cfg, err := LoadKDL(root)
	if err != nil || cfg != nil {
		return cfg, err
	}
	return LoadTOML(root)
}

// LoadFile reads one explicit config file; the format follows the extension
func LoadFile(path string) (*Config, error) {
	dir := filepath.Dir(path)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = parseTOML(content, dir)
	default:
		cfg, err = parseKDL(string(content), dir)
	}
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, dir)
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// resolveRoot makes the project root absolute relative to the config's directory
func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = configDir
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(configDir, cfg.Project.Root)
	}
	if abs, err := filepath.Abs(cfg.Project.Root); err == nil {
		cfg.Project.Root = abs
	}
	cfg.Project.Root = filepath.Clean(cfg.Project.Root)
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}
}

// mergeConfigs merges a base config with a project config.
// Project settings win; base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}

	// Inclusions: project overrides base completely if specified
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// DeduplicatePatterns removes repeated patterns, keeping first-seen order
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// EnrichExclusionsWithBuildArtifacts adds directories declared by the project's
// build files (composer vendor and bin dirs, framework caches) to Exclude.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}

	detected := NewBuildArtifactDetector(c.Project.Root).DetectOutputDirectories()
	if len(detected) > 0 {
		c.Exclude = DeduplicatePatterns(append(c.Exclude, detected...))
	}
}
