// Package metrics collects scan counters as Prometheus metrics and exports
// them to the node exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names for shapescan
const (
	MetricFilesScanned      = "shapescan_files_scanned_total"
	MetricFilesSkipped      = "shapescan_files_skipped_total"
	MetricParseFailures     = "shapescan_parse_failures_total"
	MetricPrefilterRejected = "shapescan_prefilter_rejected_total"
	MetricMatches           = "shapescan_matches_total"
	MetricCacheHits         = "shapescan_cache_hits_total"
	MetricCacheMisses       = "shapescan_cache_misses_total"
	MetricFileDuration      = "shapescan_file_duration_seconds"
	MetricRulesLoaded       = "shapescan_rules_loaded"
)

// Collector owns a registry with every shapescan metric.
type Collector struct {
	registry *prometheus.Registry

	filesScanned      *prometheus.CounterVec
	filesSkipped      *prometheus.CounterVec
	parseFailures     prometheus.Counter
	prefilterRejected prometheus.Counter
	matches           *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	fileDuration      prometheus.Histogram
	rulesLoaded       prometheus.Gauge
	startTime         time.Time
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		filesScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFilesScanned,
			Help: "Files matched against the rule set, by language.",
		}, []string{"language"}),
		filesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFilesSkipped,
			Help: "Files not scanned, by reason.",
		}, []string{"reason"}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricParseFailures,
			Help: "Files the parser rejected.",
		}),
		prefilterRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefilterRejected,
			Help: "Files skipped before parsing because no check could match.",
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricMatches,
			Help: "Findings reported, by rule and severity.",
		}, []string{"rule", "severity"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheHits,
			Help: "Files whose findings came from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheMisses,
			Help: "Cache lookups that found nothing.",
		}),
		fileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFileDuration,
			Help:    "Time spent matching one file.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		rulesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRulesLoaded,
			Help: "Rules in the active rule set.",
		}),
		startTime: time.Now(),
	}
	c.registry.MustRegister(
		c.filesScanned, c.filesSkipped, c.parseFailures, c.prefilterRejected,
		c.matches, c.cacheHits, c.cacheMisses, c.fileDuration, c.rulesLoaded,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// FileScanned counts a file matched with the given language.
func (c *Collector) FileScanned(language string) {
	c.filesScanned.WithLabelValues(language).Inc()
}

// FileSkipped counts a file that was not scanned.
func (c *Collector) FileSkipped(reason string) {
	c.filesSkipped.WithLabelValues(reason).Inc()
}

// ParseFailed counts a file the parser rejected.
func (c *Collector) ParseFailed() { c.parseFailures.Inc() }

// PrefilterRejected counts a file no check could match.
func (c *Collector) PrefilterRejected() { c.prefilterRejected.Inc() }

// Match counts one finding.
func (c *Collector) Match(rule, severity string) {
	c.matches.WithLabelValues(rule, severity).Inc()
}

// CacheHit counts a cache hit.
func (c *Collector) CacheHit() { c.cacheHits.Inc() }

// CacheMiss counts a cache miss.
func (c *Collector) CacheMiss() { c.cacheMisses.Inc() }

// SetRulesLoaded records the size of the rule set.
func (c *Collector) SetRulesLoaded(n int) { c.rulesLoaded.Set(float64(n)) }

// StartTimer starts timing one file. Call Stop on the result when done.
func (c *Collector) StartTimer() *prometheus.Timer {
	return prometheus.NewTimer(c.fileDuration)
}

// ObserveFile records the time spent on one file.
func (c *Collector) ObserveFile(d time.Duration) {
	c.fileDuration.Observe(d.Seconds())
}

// Uptime returns the time since the collector was created.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
