// Package metrics exposes Prometheus collectors for assignment runs and the
// layer server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/zoomtier/internal/decimate"
)

var (
	PointsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zoomtier_points_total",
		Help: "Points labeled, by assigned zoom (0 for unassigned)",
	}, []string{"zoom"})
	TierDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zoomtier_tier_duration_seconds",
		Help:    "Duration of a single tier pass",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"zoom"})
	AssignDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zoomtier_assign_duration_seconds",
		Help:    "Duration of a full assignment run",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zoomtier_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "code"})
	HTTPDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zoomtier_http_duration_seconds",
		Help:    "HTTP request duration by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zoomtier_cache_hits_total",
		Help: "Total response cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zoomtier_cache_misses_total",
		Help: "Total response cache misses",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zoomtier_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
	BatchJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zoomtier_batch_jobs_total",
		Help: "Batch jobs by outcome",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(PointsTotal)
	prometheus.MustRegister(TierDurationSeconds)
	prometheus.MustRegister(AssignDurationSeconds)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPDurationSeconds)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(BatchJobsTotal)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveResult records per-zoom label counts and tier durations of one run.
func ObserveResult(res *decimate.Result, elapsed time.Duration) {
	for zoom, n := range res.Counts() {
		PointsTotal.WithLabelValues(strconv.Itoa(zoom)).Add(float64(n))
	}
	for _, ts := range res.Tiers {
		TierDurationSeconds.WithLabelValues(strconv.Itoa(ts.Zoom)).Observe(ts.Duration.Seconds())
	}
	AssignDurationSeconds.Observe(elapsed.Seconds())
}
