package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/callmap/internal/calltree"
	"github.com/standardbeagle/callmap/internal/config"
	"github.com/standardbeagle/callmap/internal/phpindex"
	"github.com/standardbeagle/callmap/testhelpers"
)

func signatures(nodes []*calltree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Signature()
	}
	return out
}

func TestEngine_DiscoversPHPCallers(t *testing.T) {
	project := testhelpers.ShopProject(t)
	idx, err := phpindex.Build(context.Background(), project.Config().Build())
	require.NoError(t, err)

	syms, err := idx.Lookup("Order::save")
	require.NoError(t, err)

	e := newEngine(t, idx, testOptions())
	root, err := e.BuildInitialTree(syms[0])
	require.NoError(t, err)
	assert.Contains(t, root.CodeContext(), "public function save(): void")

	e.StartDiscovery(root, nil, nil)
	awaitIdle(t, e)

	require.Equal(t, []string{"OrderService::place()"}, signatures(root.Callers()))
	place := root.Callers()[0]
	assert.Equal(t, calltree.Loaded, place.State())
	assert.Equal(t, []string{"OrderController::store()", "CheckoutJob::handle()"}, signatures(place.Callers()))
	for _, c := range place.Callers() {
		assert.Equal(t, calltree.Loaded, c.State())
		assert.Empty(t, c.Callers())
	}

	// editing the controller drops cache entries for everything it named
	abs := project.Write("src/Http/OrderController.php", "<?php\nclass OrderController { public function store($s) { return 1; } }\n")
	names, err := idx.Reindex(abs)
	require.NoError(t, err)
	assert.Positive(t, e.InvalidateFile(idx.Key(abs), names))
	_, ok := e.Cache().Get(place.ID())
	assert.False(t, ok)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Discovery.MaxConcurrentTasks = 5
	cfg.Discovery.TaskTimeoutMs = 1500
	cfg.Discovery.IdleWaitMs = 20
	cfg.Discovery.AutoExpandDepth = 1
	cfg.Discovery.YieldPauseMs = 0
	cfg.Discovery.CycleGuard = false
	cfg.Cache.TTLSeconds = 60
	cfg.Cache.Capacity = 10
	cfg.Cache.CleanupIntervalSeconds = 0

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 5, opts.Queue.MaxConcurrent)
	assert.Equal(t, 1500*time.Millisecond, opts.Queue.TaskTimeout)
	assert.Equal(t, 20*time.Millisecond, opts.Queue.IdleWait)
	assert.Equal(t, 1, opts.AutoExpandDepth)
	assert.Equal(t, config.DefaultMaxDepth, opts.MaxDepth)
	assert.Equal(t, time.Minute, opts.Cache.TTL)
	assert.Equal(t, 10, opts.Cache.Capacity)
	assert.False(t, opts.Cache.AutoCleanup)
	assert.True(t, opts.DisableCycleGuard)
	assert.Zero(t, opts.YieldPause)

	opts = OptionsFromConfig(config.Default(t.TempDir()))
	assert.True(t, opts.Cache.AutoCleanup)
	assert.False(t, opts.DisableCycleGuard)
	assert.Equal(t, DefaultYieldPause, opts.YieldPause)
}
