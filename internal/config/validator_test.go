package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmerrors "github.com/standardbeagle/callmap/internal/errors"
)

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := &Config{Project: Project{Root: "/srv/shop"}}

	require.NoError(t, NewValidator().ValidateAndSetDefaults(cfg))

	assert.Positive(t, cfg.Index.Workers)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Index.MaxFileSize)
	assert.Equal(t, []string{"**/*.php"}, cfg.Include)
	assert.Equal(t, DefaultMaxConcurrentTasks, cfg.Discovery.MaxConcurrentTasks)
	assert.Equal(t, DefaultTaskTimeoutMs, cfg.Discovery.TaskTimeoutMs)
	assert.Equal(t, DefaultCacheCapacity, cfg.Cache.Capacity)
}

func TestValidate_DefaultConfigPasses(t *testing.T) {
	assert.NoError(t, Validate(Default("/srv/shop")))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{"empty root", func(c *Config) { c.Project.Root = "" }, "project"},
		{"negative file size", func(c *Config) { c.Index.MaxFileSize = -1 }, "index"},
		{"huge file size", func(c *Config) { c.Index.MaxFileSize = 200 * 1024 * 1024 }, "index"},
		{"bad glob", func(c *Config) { c.Exclude = append(c.Exclude, "src/[") }, "index"},
		{"negative concurrency", func(c *Config) { c.Discovery.MaxConcurrentTasks = -2 }, "discovery"},
		{"negative timeout", func(c *Config) { c.Discovery.TaskTimeoutMs = -1 }, "discovery"},
		{"negative depth", func(c *Config) { c.Discovery.MaxDepth = -1 }, "discovery"},
		{"auto expand past max", func(c *Config) { c.Discovery.AutoExpandDepth = 20 }, "discovery"},
		{"negative capacity", func(c *Config) { c.Cache.Capacity = -5 }, "cache"},
		{"negative ttl", func(c *Config) { c.Cache.TTLSeconds = -1 }, "cache"},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -1 }, "watch"},
		{"bad metrics addr", func(c *Config) { c.Metrics.Addr = "nine-four-six-four" }, "metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/srv/shop")
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			var cfgErr *cmerrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.section, cfgErr.Field)
			assert.True(t, cmerrors.IsType(err, cmerrors.ErrorTypeConfig))
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := Default("/srv")
	assert.Equal(t, "30s", cfg.Discovery.TaskTimeout().String())
	assert.Equal(t, "100ms", cfg.Discovery.IdleWait().String())
	assert.Equal(t, "10ms", cfg.Discovery.YieldPause().String())
	assert.Equal(t, "5m0s", cfg.Cache.TTL().String())
	assert.Equal(t, "200ms", cfg.Watch.Debounce().String())
}
