package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// tile cache, prefetcher, frame watcher, and forecast cache.
type Metrics struct {
	// Tile cache metrics.
	TileCacheLookups    *prometheus.CounterVec // labels: namespace={output,provider}, result={hit,miss}
	TileInflightJoins   prometheus.Counter
	TileFetches         *prometheus.CounterVec // labels: outcome={success,error}
	TileOverzoomDerived prometheus.Counter
	TileEvictions       *prometheus.CounterVec // labels: namespace={output,provider}
	TileFetchDuration   prometheus.Histogram

	// Prefetch metrics.
	PrefetchRequests *prometheus.CounterVec // labels: outcome={success,error}
	PrefetchBatches  prometheus.Histogram

	// Frame watcher metrics.
	ManifestPolls   *prometheus.CounterVec // labels: outcome={success,error}
	FramesPublished prometheus.Counter
	WatcherRunning  prometheus.Gauge

	// Hourly forecast metrics.
	ForecastFetches *prometheus.CounterVec // labels: outcome={success,error,empty}
	ForecastLookups *prometheus.CounterVec // labels: result={hit,miss,inflight}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.TileCacheLookups,
		m.TileInflightJoins,
		m.TileFetches,
		m.TileOverzoomDerived,
		m.TileEvictions,
		m.TileFetchDuration,
		m.PrefetchRequests,
		m.PrefetchBatches,
		m.ManifestPolls,
		m.FramesPublished,
		m.WatcherRunning,
		m.ForecastFetches,
		m.ForecastLookups,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		TileCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "tile_cache_lookups_total",
			Help:      "Tile cache lookups by namespace and result.",
		}, []string{"namespace", "result"}),
		TileInflightJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "tile_inflight_joins_total",
			Help:      "Requests that joined an already-outstanding fetch for the same key.",
		}),
		TileFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "tile_fetches_total",
			Help:      "Provider tile fetches by outcome.",
		}, []string{"outcome"}),
		TileOverzoomDerived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "tile_overzoom_derived_total",
			Help:      "Tiles derived by cropping and rescaling a lower-zoom parent.",
		}),
		TileEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "tile_evictions_total",
			Help:      "Cache entries evicted by namespace.",
		}, []string{"namespace"}),
		TileFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radarcache",
			Name:      "tile_fetch_duration_seconds",
			Help:      "Duration of provider tile fetches.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PrefetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "prefetch_requests_total",
			Help:      "Best-effort prefetch requests by outcome.",
		}, []string{"outcome"}),
		PrefetchBatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radarcache",
			Name:      "prefetch_batch_size",
			Help:      "Number of URLs per prefetch warming pass.",
			Buckets:   []float64{1, 5, 10, 20, 50, 100, 200},
		}),
		ManifestPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "manifest_polls_total",
			Help:      "Radar frame manifest polls by outcome.",
		}, []string{"outcome"}),
		FramesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "frames_published_total",
			Help:      "Frame-available events published to Kafka.",
		}),
		WatcherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radarcache",
			Name:      "frame_watcher_running",
			Help:      "1 when the frame watcher is active, 0 when shut down.",
		}),
		ForecastFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "forecast_fetches_total",
			Help:      "Hourly forecast fetches by outcome.",
		}, []string{"outcome"}),
		ForecastLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radarcache",
			Name:      "forecast_cache_lookups_total",
			Help:      "Hourly forecast day-bucket lookups by result.",
		}, []string{"result"}),
	}
}
