package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/bureaucratese/internal/domain/metric"
)

// HTTPMetrics are the API server request metrics.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers HTTP metrics on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	labels := []string{"method", "path", "status", "metric"}
	m := &HTTPMetrics{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bureaucratese",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				// semantic scoring is an embedding round-trip, lexical is sub-millisecond
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			labels,
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bureaucratese",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			labels,
		),
	}
	reg.MustRegister(m.duration, m.requests)
	return m
}

// Middleware records HTTP request duration and count. Paths are chi route
// patterns; the density metric comes from ?method= and is bounded to the
// known kinds.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		path := normalizePath(chi.RouteContext(r.Context()).RoutePattern())
		lv := []string{r.Method, path, strconv.Itoa(ww.status), metricLabel(r)}
		m.duration.WithLabelValues(lv...).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(lv...).Inc()
	})
}

// normalizePath keeps unmatched routes out of the label space.
func normalizePath(path string) string {
	if path == "" {
		return "unknown"
	}
	return path
}

func metricLabel(r *http.Request) string {
	raw := r.URL.Query().Get("method")
	if raw == "" {
		return "none"
	}
	k, err := metric.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return string(k)
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}
