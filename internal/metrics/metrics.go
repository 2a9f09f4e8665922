// Package metrics provides the Prometheus metrics of the page monitor.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

// Namespace is the namespace for all page monitor metrics.
const Namespace = "pagemonitor"

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// Crawl metrics
	CrawlJobsTotal      *prometheus.CounterVec
	CrawlJobDuration    prometheus.Histogram
	CrawlPagesTotal     *prometheus.CounterVec
	CrawlJobsRunning    prometheus.Gauge
	ChangesDetected     *prometheus.CounterVec
	IngestTotal         *prometheus.CounterVec
	ScheduleTriggers    *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics. A nil registerer uses the
// default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initCrawlMetrics(factory)
	m.initPipelineMetrics(factory)
	m.initHTTPMetrics(factory)

	return m
}

func (m *Metrics) initCrawlMetrics(factory promauto.Factory) {
	m.CrawlJobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crawl_jobs_total",
			Help:      "Total number of finished crawl jobs",
		},
		[]string{"status", "trigger"},
	)

	m.CrawlJobDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "crawl_job_duration_seconds",
			Help:      "Duration of crawl jobs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		},
	)

	m.CrawlPagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crawl_pages_total",
			Help:      "Total number of crawled pages by outcome",
		},
		[]string{"outcome"},
	)

	m.CrawlJobsRunning = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "crawl_jobs_running",
			Help:      "Number of crawl jobs currently running",
		},
	)

	m.ChangesDetected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "changes_detected_total",
			Help:      "Total number of detected page changes",
		},
		[]string{"type", "substantive"},
	)
}

func (m *Metrics) initPipelineMetrics(factory promauto.Factory) {
	m.IngestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingest_total",
			Help:      "Total number of ingestion attempts",
		},
		[]string{"mode", "result"},
	)

	m.ScheduleTriggers = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "schedule_triggers_total",
			Help:      "Total number of scheduled crawl triggers",
		},
		[]string{"result"},
	)
}

func (m *Metrics) initHTTPMetrics(factory promauto.Factory) {
	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// JobStarted marks a crawl job as running.
func (m *Metrics) JobStarted() {
	m.CrawlJobsRunning.Inc()
}

// JobFinished records a terminal job.
func (m *Metrics) JobFinished(job domain.CrawlJob) {
	m.CrawlJobsRunning.Dec()
	m.CrawlJobsTotal.WithLabelValues(string(job.Status), string(job.Trigger)).Inc()
	m.CrawlJobDuration.Observe(job.ElapsedSeconds)
}

// PageCrawled records one page outcome (NEW, MODIFIED, REMOVED, UNCHANGED
// or FAILED).
func (m *Metrics) PageCrawled(outcome string) {
	m.CrawlPagesTotal.WithLabelValues(outcome).Inc()
}

// ChangeDetected records a logged change.
func (m *Metrics) ChangeDetected(changeType domain.ChangeType, substantive bool) {
	m.ChangesDetected.WithLabelValues(string(changeType), strconv.FormatBool(substantive)).Inc()
}

// Ingested records an ingestion attempt.
func (m *Metrics) Ingested(mode string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.IngestTotal.WithLabelValues(mode, result).Inc()
}

// ScheduleTriggered records a schedule fire: "started", "skipped" or "error".
func (m *Metrics) ScheduleTriggered(result string) {
	m.ScheduleTriggers.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
