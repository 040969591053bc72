package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reports"

// Metrics holds the collectors for report generation and export jobs.
// All methods are safe on a nil receiver.
type Metrics struct {
	reportsGenerated *prometheus.CounterVec
	reportDuration   *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	jobsEnqueued     *prometheus.CounterVec
	jobsFinished     *prometheus.CounterVec
	jobsActive       prometheus.Gauge
	jobsEvicted      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reportsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "reports_generated_total",
			Help:      "Reports generated, by type and aggregation path.",
		}, []string{"type", "path"}),
		reportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "report_duration_seconds",
			Help:      "Time spent generating a report.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome (hit, miss, error).",
		}, []string{"result"}),
		jobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exports",
			Name:      "jobs_enqueued_total",
			Help:      "Export jobs accepted, by report type and format.",
		}, []string{"type", "format"}),
		jobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exports",
			Name:      "jobs_finished_total",
			Help:      "Export jobs that reached a terminal status.",
		}, []string{"status"}),
		jobsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exports",
			Name:      "jobs_active",
			Help:      "Export jobs currently queued or running.",
		}),
		jobsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exports",
			Name:      "jobs_evicted_total",
			Help:      "Terminal export jobs removed by the retention sweep.",
		}),
	}
}

func (m *Metrics) ObserveReport(reportType, path string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reportsGenerated.WithLabelValues(reportType, path).Inc()
	m.reportDuration.WithLabelValues(reportType).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) JobEnqueued(reportType, format string) {
	if m == nil {
		return
	}
	m.jobsEnqueued.WithLabelValues(reportType, format).Inc()
	m.jobsActive.Inc()
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(status).Inc()
	m.jobsActive.Dec()
}

func (m *Metrics) JobsEvicted(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.jobsEvicted.Add(float64(count))
}
