// file: internal/metrics/metrics.go
// version: 2.0.0
// guid: 9f8e7d6c-5b4a-3210-9fed-cba876543210

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	scansStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "audiobook_curator",
		Name:      "scans_started_total",
		Help:      "Total number of directory scans started",
	})
	scansCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "audiobook_curator",
		Name:      "scans_completed_total",
		Help:      "Total number of directory scans completed",
	})
	scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "audiobook_curator",
		Name:      "scan_duration_seconds",
		Help:      "Histogram of directory scan durations in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 10),
	})

	matchLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiobook_curator",
		Name:      "match_lookups_total",
		Help:      "Total metadata lookups by outcome (hit, miss, error)",
	}, []string{"outcome"})
	providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiobook_curator",
		Name:      "provider_requests_total",
		Help:      "Total provider search requests by provider and status",
	}, []string{"provider", "status"})

	filesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "audiobook_curator",
		Name:      "library_files_total",
		Help:      "Current number of standalone files in the library",
	})
	collectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "audiobook_curator",
		Name:      "library_collections_total",
		Help:      "Current number of multi-file works in the library",
	})
	cacheEntriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "audiobook_curator",
		Name:      "metadata_cache_entries",
		Help:      "Current number of metadata cache entries",
	})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(scansStarted, scansCompleted, scanDuration,
			matchLookups, providerRequests,
			filesGauge, collectionsGauge, cacheEntriesGauge)
	})
}

// Scan lifecycle helpers
func IncScanStarted()   { scansStarted.Inc() }
func IncScanCompleted() { scansCompleted.Inc() }
func ObserveScanDuration(d time.Duration) {
	scanDuration.Observe(d.Seconds())
}

// Match helpers
func IncMatchLookup(outcome string) { matchLookups.WithLabelValues(outcome).Inc() }
func IncProviderRequest(provider, status string) {
	providerRequests.WithLabelValues(provider, status).Inc()
}

// Gauges
func SetFiles(n int)        { filesGauge.Set(float64(n)) }
func SetCollections(n int)  { collectionsGauge.Set(float64(n)) }
func SetCacheEntries(n int) { cacheEntriesGauge.Set(float64(n)) }
