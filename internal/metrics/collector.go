// Package metrics exposes discovery queue, cache and index counters in the
// Prometheus exposition format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/standardbeagle/callmap/internal/cache"
	"github.com/standardbeagle/callmap/internal/phpindex"
	"github.com/standardbeagle/callmap/internal/queue"
	"github.com/standardbeagle/callmap/internal/watch"
)

const namespace = "callmap"

// Source is the engine view the collector reads on every scrape
type Source interface {
	QueueStatus() queue.Status
	CacheStats() cache.Stats
}

// IndexSource reports symbol index sizes
type IndexSource interface {
	Stats() phpindex.Stats
}

// WatchSource reports file watcher counters
type WatchSource interface {
	Stats() watch.Stats
}

// Collector is a prometheus.Collector over a running engine. Values are read
// at scrape time, so nothing needs updating on the hot path.
type Collector struct {
	src   Source
	index IndexSource
	watch WatchSource

	queuePending   *prometheus.Desc
	queueActive    *prometheus.Desc
	queueCompleted *prometheus.Desc
	queueFailed    *prometheus.Desc
	queueTotal     *prometheus.Desc

	cacheEntries       *prometheus.Desc
	cacheHits          *prometheus.Desc
	cacheMisses        *prometheus.Desc
	cacheEvictions     *prometheus.Desc
	cacheExpirations   *prometheus.Desc
	cacheInvalidations *prometheus.Desc

	indexFiles        *prometheus.Desc
	indexDeclarations *prometheus.Desc
	indexCallSites    *prometheus.Desc

	watchEvents  *prometheus.Desc
	watchErrors  *prometheus.Desc
	watchBatches *prometheus.Desc
}

type Option func(*Collector)

// WithIndex adds callmap_index_* gauges
func WithIndex(idx IndexSource) Option {
	return func(c *Collector) { c.index = idx }
}

// WithWatcher adds callmap_watch_* counters
func WithWatcher(w WatchSource) Option {
	return func(c *Collector) { c.watch = w }
}

func desc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
}

func NewCollector(src Source, opts ...Option) *Collector {
	c := &Collector{
		src:            src,
		queuePending:   desc("queue_pending", "Discovery tasks waiting for a worker"),
		queueActive:    desc("queue_active", "Discovery tasks currently running"),
		queueCompleted: desc("queue_completed", "Discovery tasks finished since the last reset"),
		queueFailed:    desc("queue_failed", "Discovery tasks failed or timed out since the last reset"),
		queueTotal:     desc("queue_total", "Discovery tasks accepted since the last reset"),

		cacheEntries:       desc("cache_entries", "Methods with cached callers"),
		cacheHits:          desc("cache_hits_total", "Cache lookups that returned callers"),
		cacheMisses:        desc("cache_misses_total", "Cache lookups that found nothing"),
		cacheEvictions:     desc("cache_evictions_total", "Entries dropped to make room"),
		cacheExpirations:   desc("cache_expirations_total", "Entries dropped after their TTL"),
		cacheInvalidations: desc("cache_invalidations_total", "Entries dropped after a file change"),

		indexFiles:        desc("index_files", "PHP files in the symbol index"),
		indexDeclarations: desc("index_declarations", "Methods and functions in the symbol index"),
		indexCallSites:    desc("index_call_sites", "Call expressions in the symbol index"),

		watchEvents:  desc("watch_events_total", "File events processed by the watcher"),
		watchErrors:  desc("watch_errors_total", "Watcher and reindex errors"),
		watchBatches: desc("watch_batches_total", "Debounced watcher flushes"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.queuePending, c.queueActive, c.queueCompleted, c.queueFailed, c.queueTotal,
		c.cacheEntries, c.cacheHits, c.cacheMisses, c.cacheEvictions, c.cacheExpirations, c.cacheInvalidations,
	} {
		ch <- d
	}
	if c.index != nil {
		ch <- c.indexFiles
		ch <- c.indexDeclarations
		ch <- c.indexCallSites
	}
	if c.watch != nil {
		ch <- c.watchEvents
		ch <- c.watchErrors
		ch <- c.watchBatches
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}

	q := c.src.QueueStatus()
	gauge(c.queuePending, float64(q.Pending))
	gauge(c.queueActive, float64(q.Active))
	gauge(c.queueCompleted, float64(q.Completed))
	gauge(c.queueFailed, float64(q.Failed))
	gauge(c.queueTotal, float64(q.Total))

	s := c.src.CacheStats()
	gauge(c.cacheEntries, float64(s.Entries))
	counter(c.cacheHits, float64(s.Hits))
	counter(c.cacheMisses, float64(s.Misses))
	counter(c.cacheEvictions, float64(s.Evictions))
	counter(c.cacheExpirations, float64(s.Expirations))
	counter(c.cacheInvalidations, float64(s.Invalidations))

	if c.index != nil {
		st := c.index.Stats()
		gauge(c.indexFiles, float64(st.Files))
		gauge(c.indexDeclarations, float64(st.Declarations))
		gauge(c.indexCallSites, float64(st.CallSites))
	}
	if c.watch != nil {
		st := c.watch.Stats()
		counter(c.watchEvents, float64(st.EventsProcessed))
		counter(c.watchErrors, float64(st.Errors))
		counter(c.watchBatches, float64(st.Batches))
	}
}
