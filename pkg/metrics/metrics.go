package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsSubmitted tracks every record entering the pipeline.
	// outcome: appended (written through), queued (buffered), mode: immediate/buffered
	RecordsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_records_submitted_total",
		Help: "Total number of appraisal records submitted to the pipeline",
	}, []string{"outcome", "mode"})

	// QueueDepth is the primary operator-visible signal that immediate writes
	// have been degrading to the offline buffer
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_offline_queue_depth",
		Help: "Current number of records buffered in the offline queue",
	})

	// SyncDuration measures a full drain attempt against the remote store
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_sync_duration_seconds",
		Help:    "Duration of offline queue drain attempts in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SyncBatchSize tracks how many entries each drain snapshot carried
	SyncBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_sync_batch_size",
		Help:    "Number of queue entries per drain attempt",
		Buckets: []float64{1, 5, 10, 25, 50, 100},
	})

	// StoreHealthy provides a binary 0/1 signal for remote store availability
	StoreHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_store_healthy",
		Help: "Remote store availability (1 reachable, 0 unreachable)",
	})

	// AnalysisRequests tracks calls to the multimodal analysis service
	// status: ok, error, empty
	AnalysisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_analysis_requests_total",
		Help: "Total number of requests to the analysis service",
	}, []string{"status", "model"})

	// AnalysisDuration measures analysis service latency per model
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_analysis_duration_seconds",
		Help:    "Latency of analysis service calls",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"model"})
)
