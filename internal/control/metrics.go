package control

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mdk_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mdk_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	// IndexPassesTotal tracks finished index passes by result.
	IndexPassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdk_index_passes_total",
		Help: "Total number of finished index passes by result",
	}, []string{"result"})

	// IndexedAudioFiles tracks audio files seen by index passes.
	IndexedAudioFiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mdk_index_audio_files_total",
		Help: "Total number of audio files emitted by index passes",
	})

	// JobsTotal tracks finished background jobs by name and result.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdk_jobs_total",
		Help: "Total number of finished background jobs by name and result",
	}, []string{"job", "result"})

	// StopRequestsTotal tracks stop arbitration outcomes.
	StopRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdk_stop_requests_total",
		Help: "Total number of service stop requests by reason and outcome",
	}, []string{"reason", "outcome"})

	// ServicePriority mirrors the current host priority (0 background,
	// 1 foreground-requested, 2 foreground).
	ServicePriority = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mdk_service_priority",
		Help: "Current service priority (0 background, 1 requested, 2 foreground)",
	})

	// OpenSources mirrors the number of open transport sources.
	OpenSources = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mdk_open_sources",
		Help: "Currently open storage sources",
	})

	// TracksCatalogued mirrors the library's track count.
	TracksCatalogued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mdk_tracks_catalogued",
		Help: "Tracks currently present in the library catalogue",
	})
)

// IncIndexPass records a finished index pass.
func IncIndexPass(result string, audioFiles int) {
	IndexPassesTotal.WithLabelValues(result).Inc()
	if audioFiles > 0 {
		IndexedAudioFiles.Add(float64(audioFiles))
	}
}

// IncJob records a finished background job outcome.
func IncJob(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JobsTotal.WithLabelValues(job, result).Inc()
}

// IncStop records a stop arbitration outcome.
func IncStop(reason, outcome string) {
	StopRequestsTotal.WithLabelValues(reason, outcome).Inc()
}

// requestMetrics records Prometheus metrics for every request. Paths are
// labelled by chi route pattern, not the raw URL, to keep cardinality
// bounded.
func requestMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			httpRequestDuration.WithLabelValues(
				r.Method, path, strconv.Itoa(ww.Status()),
			).Observe(time.Since(start).Seconds())
		})
	}
}
