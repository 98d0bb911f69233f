package discovery

import (
	"github.com/standardbeagle/callmap/internal/cache"
	"github.com/standardbeagle/callmap/internal/config"
	"github.com/standardbeagle/callmap/internal/queue"
)

// OptionsFromConfig maps the discovery and cache sections onto engine options
func OptionsFromConfig(cfg *config.Config) Options {
	d := cfg.Discovery
	return Options{
		Queue: queue.Config{
			MaxConcurrent: d.MaxConcurrentTasks,
			TaskTimeout:   d.TaskTimeout(),
			IdleWait:      d.IdleWait(),
		},
		Cache: cache.Config{
			TTL:             cfg.Cache.TTL(),
			Capacity:        cfg.Cache.Capacity,
			AutoCleanup:     cfg.Cache.CleanupIntervalSeconds > 0,
			CleanupInterval: cfg.Cache.CleanupInterval(),
		},
		MaxDepth:          d.MaxDepth,
		AutoExpandDepth:   d.AutoExpandDepth,
		AutoExpandFanout:  d.AutoExpandFanout,
		YieldEvery:        d.YieldEvery,
		YieldPause:        d.YieldPause(),
		DisableCycleGuard: !d.CycleGuard,
	}
}
