// internal/common/metrics/metrics.go
package metrics

import (
	"context"

	"registry-workers/internal/dedup"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	DedupScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_scans_total",
			Help: "Duplicate checks by entity type and recommendation",
		},
		[]string{"entity_type", "recommendation"},
	)

	DedupMatchesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_matches_found_total",
			Help: "Possible duplicates returned by duplicate checks",
		},
		[]string{"entity_type"},
	)

	DedupScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dedup_scan_duration_seconds",
			Help:    "Duration of one duplicate check, corpus load excluded",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"entity_type", "algorithm"},
	)

	DedupCorpusRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dedup_corpus_records",
			Help: "Size of the last corpus snapshot scanned per entity type",
		},
		[]string{"entity_type"},
	)
)

// ScanRecorder feeds dedup scan events into the prometheus collectors.
type ScanRecorder struct{}

func NewScanRecorder() *ScanRecorder {
	return &ScanRecorder{}
}

func (ScanRecorder) ObserveScan(_ context.Context, event dedup.ScanEvent) error {
	DedupScans.WithLabelValues(event.EntityType, string(event.Recommendation)).Inc()
	if event.Err != nil {
		return nil
	}
	DedupMatchesFound.WithLabelValues(event.EntityType).Add(float64(event.TotalMatches))
	DedupScanDuration.WithLabelValues(event.EntityType, event.Algorithm.String()).Observe(event.Duration.Seconds())
	DedupCorpusRecords.WithLabelValues(event.EntityType).Set(float64(event.CorpusSize))
	return nil
}
