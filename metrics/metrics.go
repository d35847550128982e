// Package metrics exports sgv allocator statistics as prometheus
// metrics. The collector only reads the counters the allocator
// maintains; registration is left to the embedding program:
//
//	set := sgv.NewPoolset("scst", nil)
//	prometheus.MustRegister(metrics.NewCollector(set))
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openunix/scst/sgv"
)

// Collector exposes a Poolset and its pools as prometheus metrics.
type Collector struct {
	set *sgv.Poolset

	pagesTotal    *prometheus.Desc
	hiwmkReleases *prometheus.Desc
	hiwmkFailed   *prometheus.Desc
	otherAllocs   *prometheus.Desc
	cachedEntries *prometheus.Desc
	cachedPages   *prometheus.Desc
	inactivePages *prometheus.Desc
	bucketHits    *prometheus.Desc
	bucketAllocs  *prometheus.Desc
	bucketMerged  *prometheus.Desc
}

// NewCollector create a collector over the given allocator
// subsystem.
func NewCollector(set *sgv.Poolset) *Collector {
	return &Collector{
		set: set,
		pagesTotal: prometheus.NewDesc(
			"scst_sgv_pages_total",
			"Pages currently accounted across all pools.",
			nil, nil),
		hiwmkReleases: prometheus.NewDesc(
			"scst_sgv_hiwmk_releases_total",
			"Allocations that crossed the high watermark.",
			nil, nil),
		hiwmkFailed: prometheus.NewDesc(
			"scst_sgv_hiwmk_release_failures_total",
			"Watermark crossings that failed even after shrinking.",
			nil, nil),
		otherAllocs: prometheus.NewDesc(
			"scst_sgv_plain_allocs_total",
			"Plain un-pooled SG vector allocations.",
			nil, nil),
		cachedEntries: prometheus.NewDesc(
			"scst_sgv_pool_cached_entries",
			"Cached vectors held by the pool.",
			[]string{"pool"}, nil),
		cachedPages: prometheus.NewDesc(
			"scst_sgv_pool_cached_pages",
			"Pages belonging to the pool's cached vectors.",
			[]string{"pool"}, nil),
		inactivePages: prometheus.NewDesc(
			"scst_sgv_pool_inactive_cached_pages",
			"Pages sitting in the pool's free-lists, not lent out.",
			[]string{"pool"}, nil),
		bucketHits: prometheus.NewDesc(
			"scst_sgv_bucket_hits_total",
			"Cache hits served by the bucket.",
			[]string{"pool", "pages"}, nil),
		bucketAllocs: prometheus.NewDesc(
			"scst_sgv_bucket_allocs_total",
			"Allocations served by the bucket.",
			[]string{"pool", "pages"}, nil),
		bucketMerged: prometheus.NewDesc(
			"scst_sgv_bucket_merged_total",
			"SG entries saved by clustering in the bucket.",
			[]string{"pool", "pages"}, nil),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pagesTotal
	ch <- c.hiwmkReleases
	ch <- c.hiwmkFailed
	ch <- c.otherAllocs
	ch <- c.cachedEntries
	ch <- c.cachedPages
	ch <- c.inactivePages
	ch <- c.bucketHits
	ch <- c.bucketAllocs
	ch <- c.bucketMerged
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.set.Stats()

	ch <- prometheus.MustNewConstMetric(
		c.pagesTotal, prometheus.GaugeValue,
		float64(stats["pagestotal"].(int64)))
	ch <- prometheus.MustNewConstMetric(
		c.hiwmkReleases, prometheus.CounterValue,
		float64(stats["hiwmkreleases"].(int64)))
	ch <- prometheus.MustNewConstMetric(
		c.hiwmkFailed, prometheus.CounterValue,
		float64(stats["hiwmkfailed"].(int64)))
	ch <- prometheus.MustNewConstMetric(
		c.otherAllocs, prometheus.CounterValue,
		float64(stats["othertotalalloc"].(int64)))

	for _, pool := range c.set.Pools() {
		pstats := pool.Stats()
		name := pool.Name()

		ch <- prometheus.MustNewConstMetric(
			c.cachedEntries, prometheus.GaugeValue,
			float64(pstats["cachedentries"].(int64)), name)
		ch <- prometheus.MustNewConstMetric(
			c.cachedPages, prometheus.GaugeValue,
			float64(pstats["cachedpages"].(int64)), name)
		ch <- prometheus.MustNewConstMetric(
			c.inactivePages, prometheus.GaugeValue,
			float64(pstats["inactivepages"].(int64)), name)

		hits := pstats["hitalloc"].([]int64)
		totals := pstats["totalalloc"].([]int64)
		merged := pstats["merged"].([]int64)
		for i := range totals {
			pages := strconv.Itoa(1 << uint(i))
			ch <- prometheus.MustNewConstMetric(
				c.bucketHits, prometheus.CounterValue,
				float64(hits[i]), name, pages)
			ch <- prometheus.MustNewConstMetric(
				c.bucketAllocs, prometheus.CounterValue,
				float64(totals[i]), name, pages)
			ch <- prometheus.MustNewConstMetric(
				c.bucketMerged, prometheus.CounterValue,
				float64(merged[i]), name, pages)
		}
	}
}
