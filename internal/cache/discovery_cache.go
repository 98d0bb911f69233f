package cache

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/callmap/internal/calltree"
	"github.com/standardbeagle/callmap/internal/debug"
)

// Cache configuration constants
const (
	DefaultTTL             = 5 * time.Minute
	DefaultCapacity        = 1000
	DefaultCleanupInterval = time.Minute
)

// Config defines configuration options
type Config struct {
	TTL             time.Duration
	Capacity        int
	AutoCleanup     bool
	CleanupInterval time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		TTL:             DefaultTTL,
		Capacity:        DefaultCapacity,
		AutoCleanup:     false,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// Option customizes a DiscoveryCache
type Option func(*DiscoveryCache)

// WithClock replaces time.Now, used to simulate TTL expiry in tests
func WithClock(now func() time.Time) Option {
	return func(dc *DiscoveryCache) {
		dc.now = now
	}
}

// entry holds detached caller snapshots for one method
type entry struct {
	callers  []*calltree.Node
	cachedAt int64 // Unix nano
}

// DiscoveryCache maps a method id to the callers found for it.
// Entries expire after the TTL. Reads never refresh an entry's timestamp.
// When full, the oldest quarter of entries is evicted before an insert.
type DiscoveryCache struct {
	mu      sync.RWMutex
	entries map[calltree.MethodID]*entry

	// Configuration (read-only after creation)
	capacity int
	ttlNanos int64
	now      func() time.Time

	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	expirations   atomic.Int64
	invalidations atomic.Int64
	totalRequests atomic.Int64

	createdAt   time.Time
	lastCleanup atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a cache. Non-positive TTL or capacity fall back to the defaults.
func New(config Config, opts ...Option) *DiscoveryCache {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}

	dc := &DiscoveryCache{
		entries:  make(map[calltree.MethodID]*entry),
		capacity: config.Capacity,
		ttlNanos: config.TTL.Nanoseconds(),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(dc)
	}
	dc.createdAt = dc.now()
	dc.lastCleanup.Store(dc.createdAt.UnixNano())

	if config.AutoCleanup && config.CleanupInterval > 0 {
		dc.wg.Add(1)
		go dc.startAutoCleanup(config.CleanupInterval)
	}
	return dc
}

func (dc *DiscoveryCache) expired(e *entry, now int64) bool {
	return now-e.cachedAt > dc.ttlNanos
}

// Get returns detached copies of the cached callers of id.
// An expired entry is removed and reported as a miss.
func (dc *DiscoveryCache) Get(id calltree.MethodID) ([]*calltree.Node, bool) {
	dc.totalRequests.Add(1)
	now := dc.now().UnixNano()

	dc.mu.RLock()
	e, ok := dc.entries[id]
	dc.mu.RUnlock()

	if !ok {
		dc.misses.Add(1)
		return nil, false
	}

	if dc.expired(e, now) {
		dc.mu.Lock()
		// Another writer may have refreshed the entry in between
		if cur, ok := dc.entries[id]; ok && cur == e {
			delete(dc.entries, id)
			dc.expirations.Add(1)
		}
		dc.mu.Unlock()
		dc.misses.Add(1)
		debug.LogCache("expired %s", id)
		return nil, false
	}

	dc.hits.Add(1)
	return calltree.SnapshotAll(e.callers), true
}

// Put stores detached copies of callers under id
func (dc *DiscoveryCache) Put(id calltree.MethodID, callers []*calltree.Node) {
	e := &entry{
		callers:  calltree.SnapshotAll(callers),
		cachedAt: dc.now().UnixNano(),
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if _, exists := dc.entries[id]; !exists && len(dc.entries) >= dc.capacity {
		dc.evictOldestLocked()
	}
	dc.entries[id] = e
}

// evictOldestLocked removes the oldest quarter of entries; dc.mu must be held
func (dc *DiscoveryCache) evictOldestLocked() {
	type aged struct {
		id       calltree.MethodID
		cachedAt int64
	}
	all := make([]aged, 0, len(dc.entries))
	for id, e := range dc.entries {
		all = append(all, aged{id, e.cachedAt})
	}
	slices.SortFunc(all, func(a, b aged) int {
		switch {
		case a.cachedAt < b.cachedAt:
			return -1
		case a.cachedAt > b.cachedAt:
			return 1
		default:
			return strings.Compare(string(a.id), string(b.id))
		}
	})

	n := max(1, dc.capacity/4)
	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(dc.entries, a.id)
	}
	dc.evictions.Add(int64(n))
	debug.LogCache("evicted %d oldest entries", n)
}

// Invalidate drops the entry for id
func (dc *DiscoveryCache) Invalidate(id calltree.MethodID) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if _, ok := dc.entries[id]; !ok {
		return false
	}
	delete(dc.entries, id)
	dc.invalidations.Add(1)
	return true
}

// InvalidateByFilePattern drops every entry whose method, or any of whose cached
// callers, lives in a file matching the doublestar pattern.
func (dc *DiscoveryCache) InvalidateByFilePattern(pattern string) int {
	pattern = filepath.ToSlash(pattern)
	return dc.invalidateWhere(func(id calltree.MethodID, e *entry) bool {
		if matchFile(pattern, id.File()) {
			return true
		}
		for _, c := range e.callers {
			if matchFile(pattern, c.File()) {
				return true
			}
		}
		return false
	})
}

// InvalidateByName drops entries for methods with any of the given names.
// PHP method names are case-insensitive.
func (dc *DiscoveryCache) InvalidateByName(names ...string) int {
	if len(names) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return dc.invalidateWhere(func(id calltree.MethodID, _ *entry) bool {
		_, ok := set[strings.ToLower(id.Name())]
		return ok
	})
}

func (dc *DiscoveryCache) invalidateWhere(match func(calltree.MethodID, *entry) bool) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	removed := 0
	for id, e := range dc.entries {
		if match(id, e) {
			delete(dc.entries, id)
			removed++
		}
	}
	dc.invalidations.Add(int64(removed))
	return removed
}

func matchFile(pattern, file string) bool {
	file = filepath.ToSlash(file)
	if pattern == file {
		return true
	}
	ok, err := doublestar.Match(pattern, file)
	return err == nil && ok
}

// CleanExpired removes expired entries and returns how many were dropped
func (dc *DiscoveryCache) CleanExpired() int {
	now := dc.now().UnixNano()

	dc.mu.Lock()
	cleaned := 0
	for id, e := range dc.entries {
		if dc.expired(e, now) {
			delete(dc.entries, id)
			cleaned++
		}
	}
	dc.mu.Unlock()

	dc.expirations.Add(int64(cleaned))
	dc.lastCleanup.Store(now)
	return cleaned
}

// startAutoCleanup runs periodic cleanup until Close
func (dc *DiscoveryCache) startAutoCleanup(interval time.Duration) {
	defer dc.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := dc.CleanExpired(); n > 0 {
				debug.LogCache("cleanup removed %d expired entries", n)
			}
		case <-dc.stop:
			return
		}
	}
}

// Len returns the number of stored entries, expired ones included
func (dc *DiscoveryCache) Len() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return len(dc.entries)
}

// Clear removes all entries. Statistics are kept.
func (dc *DiscoveryCache) Clear() {
	dc.mu.Lock()
	dc.entries = make(map[calltree.MethodID]*entry)
	dc.mu.Unlock()
}

// Close stops the cleanup goroutine if one is running
func (dc *DiscoveryCache) Close() {
	dc.stopOnce.Do(func() { close(dc.stop) })
	dc.wg.Wait()
}

// Stats holds cache statistics
type Stats struct {
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	Evictions     int64         `json:"evictions"`
	Expirations   int64         `json:"expirations"`
	Invalidations int64         `json:"invalidations"`
	TotalRequests int64         `json:"total_requests"`
	HitRate       float64       `json:"hit_rate"`
	Entries       int           `json:"entries"`
	Capacity      int           `json:"capacity"`
	TTL           time.Duration `json:"ttl"`
	CreatedAt     time.Time     `json:"created_at"`
	LastCleanup   time.Time     `json:"last_cleanup"`
}

// Stats returns cache statistics
func (dc *DiscoveryCache) Stats() Stats {
	hits := dc.hits.Load()
	total := dc.totalRequests.Load()
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:          hits,
		Misses:        dc.misses.Load(),
		Evictions:     dc.evictions.Load(),
		Expirations:   dc.expirations.Load(),
		Invalidations: dc.invalidations.Load(),
		TotalRequests: total,
		HitRate:       hitRate,
		Entries:       dc.Len(),
		Capacity:      dc.capacity,
		TTL:           time.Duration(dc.ttlNanos),
		CreatedAt:     dc.createdAt,
		LastCleanup:   time.Unix(0, dc.lastCleanup.Load()),
	}
}
