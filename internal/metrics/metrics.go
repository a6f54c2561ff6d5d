package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	exportsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrew_exports_total",
			Help: "Export requests, partitioned by result.",
		},
		[]string{"result"},
	)
	windowsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrew_windows_total",
			Help: "Per-window archives built, partitioned by result.",
		},
		[]string{"result"},
	)
	assetsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrew_assets_total",
			Help: "Scene asset resolutions, partitioned by kind and result.",
		},
		[]string{"kind", "result"},
	)
	fetchCacheTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrew_fetch_cache_total",
			Help: "Remote fetch cache lookups, partitioned by hit or miss.",
		},
		[]string{"result"},
	)
	exportDuration = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vrew_export_duration_seconds",
			Help:    "Wall time of a complete export call.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func ExportFinished(result string, elapsed time.Duration) {
	exportsTotal.WithLabelValues(result).Inc()
	exportDuration.Observe(elapsed.Seconds())
}

func Window(result string) {
	windowsTotal.WithLabelValues(result).Inc()
}

func Asset(kind, result string) {
	assetsTotal.WithLabelValues(kind, result).Inc()
}

func FetchCache(result string) {
	fetchCacheTotal.WithLabelValues(result).Inc()
}
