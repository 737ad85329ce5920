package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	requests         *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	audioDuration    prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	coachCalls       *prometheus.CounterVec
	coachLatency     prometheus.Histogram

	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	queueDepth        prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered with
// reg. A nil reg uses the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocalmetrics_requests_total",
				Help: "Total number of analysis requests by endpoint and outcome",
			},
			[]string{"endpoint", "status"},
		),
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocalmetrics_analyses_total",
				Help: "Total number of analyses run by input format and outcome",
			},
			[]string{"format", "status"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vocalmetrics_analysis_duration_seconds",
				Help:    "Time spent decoding and analysing a recording",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"format"},
		),
		audioDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vocalmetrics_audio_duration_seconds",
				Help:    "Duration of analysed recordings",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocalmetrics_cache_lookups_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"result"},
		),
		coachCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocalmetrics_coach_calls_total",
				Help: "Total number of coaching feedback requests",
			},
			[]string{"status"},
		),
		coachLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vocalmetrics_coach_latency_seconds",
				Help:    "Coaching feedback latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vocalmetrics_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vocalmetrics_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vocalmetrics_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vocalmetrics_queue_depth",
				Help: "Number of analyses waiting for a worker",
			},
		),
	}
}

// RecordRequest counts one request to an analysis endpoint
func (c *Collector) RecordRequest(endpoint, status string) {
	c.requests.WithLabelValues(endpoint, status).Inc()
}

// RecordAnalysis counts one analysis and records how long it took
func (c *Collector) RecordAnalysis(format, status string, duration time.Duration) {
	c.analyses.WithLabelValues(format, status).Inc()
	c.analysisDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// ObserveAudioDuration records the length of an analysed recording
func (c *Collector) ObserveAudioDuration(seconds float64) {
	c.audioDuration.Observe(seconds)
}

// RecordCacheLookup counts a result cache hit or miss
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RecordCoachCall counts a coaching request and its latency
func (c *Collector) RecordCoachCall(status string, duration time.Duration) {
	c.coachCalls.WithLabelValues(status).Inc()
	c.coachLatency.Observe(duration.Seconds())
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetQueueDepth sets the number of queued analyses
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
