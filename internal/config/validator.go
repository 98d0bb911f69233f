package config

import (
	"errors"
	"fmt"
	"net"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"

	cmerrors "github.com/standardbeagle/callmap/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates cfg and fills zero values with defaults.
// Returns a config error naming the failing section.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	v.setSmartDefaults(cfg)

	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return cmerrors.NewConfigError("project", "", err)
	}
	if err := v.validateIndexConfig(cfg); err != nil {
		return cmerrors.NewConfigError("index", "", err)
	}
	if err := v.validateDiscoveryConfig(&cfg.Discovery); err != nil {
		return cmerrors.NewConfigError("discovery", "", err)
	}
	if err := v.validateCacheConfig(&cfg.Cache); err != nil {
		return cmerrors.NewConfigError("cache", "", err)
	}
	if err := v.validateWatchConfig(&cfg.Watch); err != nil {
		return cmerrors.NewConfigError("watch", "", err)
	}
	if err := v.validateMetricsConfig(&cfg.Metrics); err != nil {
		return cmerrors.NewConfigError("metrics", cfg.Metrics.Addr, err)
	}
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateIndexConfig(cfg *Config) error {
	if cfg.Index.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", cfg.Index.MaxFileSize)
	}
	if cfg.Index.MaxFileSize > 100*1024*1024 {
		return fmt.Errorf("max_file_size should not exceed 100MB, got %d", cfg.Index.MaxFileSize)
	}
	if cfg.Index.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", cfg.Index.Workers)
	}
	for _, p := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

func (v *Validator) validateDiscoveryConfig(d *Discovery) error {
	positive := []struct {
		name  string
		value int
	}{
		{"max_concurrent_tasks", d.MaxConcurrentTasks},
		{"task_timeout_ms", d.TaskTimeoutMs},
		{"idle_wait_ms", d.IdleWaitMs},
		{"max_depth", d.MaxDepth},
		{"yield_every", d.YieldEvery},
	}
	for _, f := range positive {
		if f.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.name, f.value)
		}
	}
	if d.AutoExpandDepth < 0 {
		return fmt.Errorf("auto_expand_depth cannot be negative, got %d", d.AutoExpandDepth)
	}
	if d.AutoExpandFanout < 0 {
		return fmt.Errorf("auto_expand_fanout cannot be negative, got %d", d.AutoExpandFanout)
	}
	if d.YieldPauseMs < 0 {
		return fmt.Errorf("yield_pause_ms cannot be negative, got %d", d.YieldPauseMs)
	}
	if d.AutoExpandDepth > d.MaxDepth {
		return fmt.Errorf("auto_expand_depth %d exceeds max_depth %d", d.AutoExpandDepth, d.MaxDepth)
	}
	return nil
}

func (v *Validator) validateCacheConfig(c *Cache) error {
	if c.TTLSeconds <= 0 {
		return fmt.Errorf("ttl_seconds must be positive, got %d", c.TTLSeconds)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if c.CleanupIntervalSeconds < 0 {
		return fmt.Errorf("cleanup_interval_seconds cannot be negative, got %d", c.CleanupIntervalSeconds)
	}
	return nil
}

func (v *Validator) validateWatchConfig(w *Watch) error {
	if w.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms cannot be negative, got %d", w.DebounceMs)
	}
	return nil
}

func (v *Validator) validateMetricsConfig(m *Metrics) error {
	if m.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Addr); err != nil {
		return fmt.Errorf("addr must be host:port: %w", err)
	}
	return nil
}

// setSmartDefaults fills unset values. Only zero values are touched, so a
// negative setting still fails validation.
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Index.Workers == 0 {
		cfg.Index.Workers = max(1, runtime.NumCPU()-1)
	}
	if cfg.Index.MaxFileSize == 0 {
		cfg.Index.MaxFileSize = DefaultMaxFileSize
	}
	if len(cfg.Include) == 0 {
		cfg.Include = []string{"**/*.php"}
	}

	d := &cfg.Discovery
	if d.MaxConcurrentTasks == 0 {
		d.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	if d.TaskTimeoutMs == 0 {
		d.TaskTimeoutMs = DefaultTaskTimeoutMs
	}
	if d.IdleWaitMs == 0 {
		d.IdleWaitMs = DefaultIdleWaitMs
	}
	if d.MaxDepth == 0 {
		d.MaxDepth = DefaultMaxDepth
	}
	if d.YieldEvery == 0 {
		d.YieldEvery = DefaultYieldEvery
	}

	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = DefaultCacheTTLSeconds
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = DefaultCacheCapacity
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = DefaultWatchDebounceMs
	}
}

// Validate is a convenience function for quick validation
func Validate(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
