package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	PriceMutations    *prometheus.CounterVec
	IngestionRows     *prometheus.CounterVec
	IngestionDuration prometheus.Histogram
	TranscodeJobs     *prometheus.CounterVec
	TranscodeDuration prometheus.Histogram
	EnqueueFailures   prometheus.Counter
	VersionConflicts  *prometheus.CounterVec
	ErrorsCount       *prometheus.CounterVec
}

// NewMetrics creates the service metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in processes and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PriceMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_mutations_total",
			Help:      "Direct price catalog mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		IngestionRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_rows_total",
			Help:      "Bulk price upload rows by outcome",
		}, []string{"outcome"}),
		IngestionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Time taken to ingest a price sheet",
			Buckets:   prometheus.DefBuckets,
		}),
		TranscodeJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcode_jobs_total",
			Help:      "Transcode jobs by terminal status",
		}, []string{"status"}),
		TranscodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcode_duration_seconds",
			Help:      "Time taken to transcode and store a video",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		EnqueueFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcode_enqueue_failures_total",
			Help:      "Videos that could not be queued for transcoding",
		}),
		VersionConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deal_version_conflicts_total",
			Help:      "Deal writes rejected because the document changed since it was read",
		}, []string{"operation"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
