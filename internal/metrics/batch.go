package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BatchMetrics are the batch orchestrator metrics. Registered on an explicit
// registry so each run owns its own set.
type BatchMetrics struct {
	RecordsTotal   *prometheus.CounterVec
	RecordDuration prometheus.Histogram
	Checkpoints    *prometheus.CounterVec
	Position       prometheus.Gauge
	DatasetSize    prometheus.Gauge
}

// NewBatchMetrics creates and registers batch metrics on reg.
func NewBatchMetrics(reg prometheus.Registerer) *BatchMetrics {
	m := &BatchMetrics{
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bureaucratese_batch",
			Name:      "records_total",
			Help:      "Records processed by outcome",
		}, []string{"status"}),

		RecordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bureaucratese_batch",
			Name:      "record_duration_seconds",
			Help:      "Time to score one record with all metrics",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bureaucratese_batch",
			Name:      "checkpoints_total",
			Help:      "Checkpoint writes by outcome",
		}, []string{"status"}),

		Position: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bureaucratese_batch",
			Name:      "position",
			Help:      "Index of the next record to process",
		}),

		DatasetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bureaucratese_batch",
			Name:      "dataset_records",
			Help:      "Number of records in the dataset",
		}),
	}

	reg.MustRegister(m.RecordsTotal, m.RecordDuration, m.Checkpoints, m.Position, m.DatasetSize)
	return m
}

// NewServer returns an HTTP server exposing gatherer on /metrics.
// The caller owns ListenAndServe and Shutdown.
func NewServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
