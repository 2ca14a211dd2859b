// Package metrics exposes Prometheus instruments for the evaluation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "repojudge"

// Custom registry to keep default Go collectors out of the output.
var registry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

var (
	jobsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "queue", Name: "jobs_submitted_total",
		Help: "Jobs accepted by the queue.",
	})
	jobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "queue", Name: "jobs_finished_total",
		Help: "Jobs that reached a terminal state.",
	}, []string{"status"})
	jobsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "queue", Name: "jobs_evicted_total",
		Help: "Terminal jobs dropped by the retention policy.",
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "queue", Name: "pending_jobs",
		Help: "Jobs waiting for the worker.",
	})
	jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "queue", Name: "job_duration_seconds",
		Help:    "Wall time of one job body.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	githubCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "fetcher", Name: "api_calls_total",
		Help: "Hosted repository API calls by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	filesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "fetcher", Name: "files_total",
		Help: "Per-file downloads by outcome.",
	}, []string{"outcome"})

	clones = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "forge", Name: "clones_total",
		Help: "Sandbox clone attempts by result kind.",
	}, []string{"kind"})
	builds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "forge", Name: "builds_total",
		Help: "Best-effort build attempts.",
	}, []string{"success"})
	removalRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "forge", Name: "removal_retries_total",
		Help: "Sandbox removal retries caused by filesystem contention.",
	})
	removalFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "forge", Name: "removal_fallbacks_total",
		Help: "Sandbox removals that needed the OS-level command.",
	})

	placeholderVerdicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "scoring", Name: "placeholder_verdicts_total",
		Help: "Verdicts produced without a working scorer.",
	})
)

func init() { //nolint:gochecknoinits // register once per process
	registry.MustRegister(
		jobsSubmitted, jobsFinished, jobsEvicted, queueDepth, jobDuration,
		githubCalls, filesFetched,
		clones, builds, removalRetries, removalFallbacks,
		placeholderVerdicts,
	)
}

// Registry returns the registry all instruments live in.
func Registry() *prometheus.Registry { return registry }

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Queue instruments.
func RecordJobSubmitted()                { jobsSubmitted.Inc() }
func RecordJobFinished(status string)    { jobsFinished.WithLabelValues(status).Inc() }
func RecordJobEvicted(n int)             { jobsEvicted.Add(float64(n)) }
func UpdateQueueDepth(n int)             { queueDepth.Set(float64(n)) }
func ObserveJobDuration(seconds float64) { jobDuration.Observe(seconds) }

// Fetcher instruments.
func RecordGitHubCall(endpoint, outcome string) { githubCalls.WithLabelValues(endpoint, outcome).Inc() }
func RecordFileFetch(outcome string)            { filesFetched.WithLabelValues(outcome).Inc() }

// Forge instruments.
func RecordClone(kind string)   { clones.WithLabelValues(kind).Inc() }
func RecordRemovalRetry()       { removalRetries.Inc() }
func RecordRemovalFallback()    { removalFallbacks.Inc() }
func RecordPlaceholderVerdict() { placeholderVerdicts.Inc() }

func RecordBuild(success bool) {
	label := "false"
	if success {
		label = "true"
	}
	builds.WithLabelValues(label).Inc()
}
