package watch

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/callmap/internal/phpindex"
	"github.com/standardbeagle/callmap/testhelpers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type invalidation struct {
	path  string
	names []string
}

type fakeCache struct {
	mu    sync.Mutex
	calls []invalidation
}

func (f *fakeCache) InvalidateFile(path string, names []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invalidation{path: path, names: names})
	return len(names)
}

// names returns every name invalidated for path across all batches
func (f *fakeCache) names(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.path != path {
			continue
		}
		for _, n := range c.names {
			if !slices.Contains(out, n) {
				out = append(out, n)
			}
		}
	}
	slices.Sort(out)
	return out
}

type harness struct {
	project *testhelpers.PHPProject
	index   *phpindex.Index
	cache   *fakeCache
	watcher *Watcher
	batches *testhelpers.Recorder[Batch]
}

func startWatcher(t *testing.T) *harness {
	t.Helper()
	project := testhelpers.ShopProject(t)
	cfg := project.Config().WithWatch(20).Build()
	idx, err := phpindex.Build(context.Background(), cfg)
	require.NoError(t, err)

	h := &harness{
		project: project,
		index:   idx,
		cache:   &fakeCache{},
		batches: testhelpers.NewRecorder[Batch](),
	}
	h.watcher, err = New(cfg, idx, h.cache)
	require.NoError(t, err)
	h.watcher.OnBatch(h.batches.Record)
	require.NoError(t, h.watcher.Start())
	t.Cleanup(func() { _ = h.watcher.Stop() })
	return h
}

func TestWatcherReindexesChangedFile(t *testing.T) {
	h := startWatcher(t)

	h.project.Write("src/Http/OrderController.php", "<?php\nclass OrderController { public function store($s) { return $s->cancel(); } }\n")
	testhelpers.WaitFor(t, func() bool {
		return slices.Contains(h.cache.names("src/Http/OrderController.php"), "cancel")
	}, 5*time.Second)
	assert.Subset(t, h.cache.names("src/Http/OrderController.php"), []string{"place", "store", "cancel"})

	place, err := h.index.Lookup("OrderService::place")
	require.NoError(t, err)
	refs, err := h.index.FindReferences(context.Background(), place[0])
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "src/Jobs/CheckoutJob.php", refs[0].File)
}

func TestWatcherRemovesDeletedFile(t *testing.T) {
	h := startWatcher(t)

	abs := h.project.Remove("src/Jobs/CheckoutJob.php")
	require.True(t, h.batches.WaitFor(func(b Batch) bool {
		return slices.Contains(b.Removed, abs)
	}, 5*time.Second))

	_, err := h.index.Lookup("CheckoutJob::handle")
	assert.ErrorIs(t, err, phpindex.ErrSymbolNotFound)
	assert.Equal(t, []string{"handle", "place"}, h.cache.names("src/Jobs/CheckoutJob.php"))
}

func TestWatcherPicksUpNewDirectory(t *testing.T) {
	h := startWatcher(t)

	h.project.Write("src/Billing/Invoice.php", "<?php\nclass Invoice { public function issue() { audit('x'); } }\n")
	testhelpers.WaitFor(t, func() bool {
		_, err := h.index.Lookup("Invoice::issue")
		return err == nil
	}, 5*time.Second)

	assert.Positive(t, h.watcher.Stats().Batches)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	h := startWatcher(t)
	require.NoError(t, h.watcher.Stop())
	assert.NotPanics(t, func() { _ = h.watcher.Stop() })
}
