// package telemetry holds the client's Prometheus collectors.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	PollRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobsync_poll_requests_total",
		Help: "Job fetches made by the poller, by outcome",
	}, []string{"result"})
	JobTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobsync_job_transitions_total",
		Help: "Job statuses applied through the transition table",
	}, []string{"status"})
	StaleTransitions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobsync_stale_transitions_total",
		Help: "Transitions dropped because their poll loop was superseded",
	})
	ActiveLoops = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobsync_poll_loops_active",
		Help: "Poll loops currently running",
	})
	StoreWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobsync_store_writes_total",
		Help: "Debounced writes flushed to the store backend, by backend and outcome",
	}, []string{"backend", "result"})
	StoreEchoesSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobsync_store_echoes_suppressed_total",
		Help: "Change notifications ignored as echoes of local writes",
	})
	FinalizeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobsync_finalize_requests_total",
		Help: "Finalize calls by outcome",
	}, []string{"result"})
	BackendHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobsync_backend_healthy",
		Help: "1 when the last health check succeeded",
	})
)

// Register adds every collector to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			PollRequests,
			JobTransitions,
			StaleTransitions,
			ActiveLoops,
			StoreWrites,
			StoreEchoesSuppressed,
			FinalizeRequests,
			BackendHealthy,
		)
	})
}

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
