package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	cmerrors "github.com/standardbeagle/callmap/internal/errors"
)

// tomlFile mirrors the KDL sections with snake_case keys.
//
//	[index]
//	include = ["src/**/*.php"]
//	max_file_size = "4MB"
//
//	[discovery]
//	task_timeout_ms = 10000
type tomlFile struct {
	Project struct {
		Root string `toml:"root"`
		Name string `toml:"name"`
	} `toml:"project"`
	Index struct {
		Include          []string `toml:"include"`
		Exclude          []string `toml:"exclude"`
		MaxFileSize      string   `toml:"max_file_size"`
		RespectGitignore *bool    `toml:"respect_gitignore"`
		Workers          *int     `toml:"workers"`
	} `toml:"index"`
	Discovery struct {
		MaxConcurrentTasks *int  `toml:"max_concurrent_tasks"`
		TaskTimeoutMs      *int  `toml:"task_timeout_ms"`
		IdleWaitMs         *int  `toml:"idle_wait_ms"`
		MaxDepth           *int  `toml:"max_depth"`
		AutoExpandDepth    *int  `toml:"auto_expand_depth"`
		AutoExpandFanout   *int  `toml:"auto_expand_fanout"`
		YieldEvery         *int  `toml:"yield_every"`
		YieldPauseMs       *int  `toml:"yield_pause_ms"`
		CycleGuard         *bool `toml:"cycle_guard"`
	} `toml:"discovery"`
	Cache struct {
		TTLSeconds             *int `toml:"ttl_seconds"`
		Capacity               *int `toml:"capacity"`
		CleanupIntervalSeconds *int `toml:"cleanup_interval_seconds"`
	} `toml:"cache"`
	Watch struct {
		Enabled    *bool `toml:"enabled"`
		DebounceMs *int  `toml:"debounce_ms"`
	} `toml:"watch"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

// LoadTOML loads .callmap.toml from dir. A missing file yields (nil, nil).
func LoadTOML(dir string) (*Config, error) {
	path := filepath.Join(dir, TOMLFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TOMLFileName, err)
	}
	cfg, err := parseTOML(content, dir)
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, dir)
	return cfg, nil
}

func parseTOML(content []byte, dir string) (*Config, error) {
	var f tomlFile
	if err := toml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default(dir)
	cfg.Project.Root = f.Project.Root
	cfg.Project.Name = f.Project.Name

	if len(f.Index.Include) > 0 {
		cfg.Include = f.Index.Include
	}
	cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, f.Index.Exclude...))
	if f.Index.MaxFileSize != "" {
		sz, err := parseSize(f.Index.MaxFileSize)
		if err != nil {
			return nil, cmerrors.NewConfigError("index.max_file_size", f.Index.MaxFileSize, err)
		}
		cfg.Index.MaxFileSize = sz
	}
	setBool(&cfg.Index.RespectGitignore, f.Index.RespectGitignore)
	setInt(&cfg.Index.Workers, f.Index.Workers)

	d := &cfg.Discovery
	setInt(&d.MaxConcurrentTasks, f.Discovery.MaxConcurrentTasks)
	setInt(&d.TaskTimeoutMs, f.Discovery.TaskTimeoutMs)
	setInt(&d.IdleWaitMs, f.Discovery.IdleWaitMs)
	setInt(&d.MaxDepth, f.Discovery.MaxDepth)
	setInt(&d.AutoExpandDepth, f.Discovery.AutoExpandDepth)
	setInt(&d.AutoExpandFanout, f.Discovery.AutoExpandFanout)
	setInt(&d.YieldEvery, f.Discovery.YieldEvery)
	setInt(&d.YieldPauseMs, f.Discovery.YieldPauseMs)
	setBool(&d.CycleGuard, f.Discovery.CycleGuard)

	setInt(&cfg.Cache.TTLSeconds, f.Cache.TTLSeconds)
	setInt(&cfg.Cache.Capacity, f.Cache.Capacity)
	setInt(&cfg.Cache.CleanupIntervalSeconds, f.Cache.CleanupIntervalSeconds)

	setBool(&cfg.Watch.Enabled, f.Watch.Enabled)
	setInt(&cfg.Watch.DebounceMs, f.Watch.DebounceMs)

	cfg.Metrics.Addr = f.Metrics.Addr
	return cfg, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
