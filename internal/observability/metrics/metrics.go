package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "weatherbench_"

	// ResultSuccess labels a run that completed with fragments.
	ResultSuccess = "success"
	// ResultFailed labels a run that carries the failure sentinel.
	ResultFailed = "failed"
	// ResultError labels a run aborted by an error before completion.
	ResultError = "error"
)

var (
	registerOnce sync.Once

	runsTotal  *prometheus.CounterVec
	runLatency *prometheus.HistogramVec

	tasksPublished prometheus.Counter
	runTimeouts    prometheus.Counter

	exportsTotal *prometheus.CounterVec
)

// Init registers the benchmark metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total benchmark runs by backend and result",
			},
			[]string{"backend", "result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_latency_seconds",
				Help:    "End-to-end run latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
			},
			[]string{"backend"},
		)
		tasksPublished = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "queue_tasks_published_total",
				Help: "Total unit tasks published to the queue backend",
			},
		)
		runTimeouts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "run_timeouts_total",
				Help: "Total runs abandoned on the bounded wait",
			},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_exports_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(runsTotal, runLatency, tasksPublished, runTimeouts, exportsTotal)
	})
}

// ObserveRun records one finished run.
func ObserveRun(backend, result string, elapsed time.Duration) {
	if runsTotal == nil {
		return
	}
	runsTotal.WithLabelValues(backend, result).Inc()
	if result == ResultSuccess {
		runLatency.WithLabelValues(backend).Observe(elapsed.Seconds())
	}
	if result == ResultFailed {
		runTimeouts.Inc()
	}
}

// ObserveTasksPublished counts queued unit tasks.
func ObserveTasksPublished(n int) {
	if tasksPublished == nil {
		return
	}
	tasksPublished.Add(float64(n))
}

// ObserveExport records one report export attempt.
func ObserveExport(format, result string) {
	if exportsTotal == nil {
		return
	}
	exportsTotal.WithLabelValues(format, result).Inc()
}
