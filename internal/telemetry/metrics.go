package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued  = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_jobs_enqueued_total", Help: "Jobs accepted by the API"})
	JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_jobs_completed_total", Help: "Jobs that reached COMPLETED"})
	JobsFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_jobs_failed_total", Help: "Jobs that reached FAILED"})
	JobsCancelled = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_jobs_cancelled_total", Help: "Jobs cancelled before completion"})
	PollRequests  = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_poll_requests_total", Help: "Status polls issued to the backend"})
	InFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{Name: "generation_jobs_inflight", Help: "Jobs currently being driven by the worker"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsCompleted,
			JobsFailed,
			JobsCancelled,
			PollRequests,
			InFlightGauge,
		)
	})
	return promhttp.Handler()
}
