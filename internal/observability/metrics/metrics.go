// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestDuration tracks ops API latency by handler, method and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transferd_http_request_duration_seconds",
			Help:    "Ops API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"handler", "method", "code"},
	)

	// CommandsTotal counts inbound bus messages by how they were handled.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferd_commands_total",
			Help: "Inbound messages by disposition",
		},
		[]string{"disposition"},
	)

	// FundingRunsTotal counts finished saga runs by outcome and error code.
	FundingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferd_funding_runs_total",
			Help: "Finished funding runs by outcome and error code",
		},
		[]string{"outcome", "code"},
	)

	// FundingStepDuration tracks how long each saga state takes.
	FundingStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transferd_funding_step_duration_seconds",
			Help:    "Funding saga step duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"step"},
	)

	// SubmissionsTotal counts ledger submissions by operation and result.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferd_ledger_submissions_total",
			Help: "Ledger transaction submissions by operation and result",
		},
		[]string{"operation", "result"},
	)

	// ActiveRuns tracks sagas in flight.
	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transferd_funding_active_runs",
			Help: "Funding runs currently in flight",
		},
	)
)

// ObserveHTTPRequest records one ops API request.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(handler, method, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveCommand counts what happened to one inbound message.
func ObserveCommand(disposition string) {
	CommandsTotal.WithLabelValues(disposition).Inc()
}

// ObserveRun records a finished saga. code is empty on success.
func ObserveRun(success bool, code string) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	FundingRunsTotal.WithLabelValues(outcome, code).Inc()
}

// ObserveStep records the time spent in one saga state.
func ObserveStep(step string, duration time.Duration) {
	FundingStepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// ObserveSubmission records one ledger submission by its journal outcome.
func ObserveSubmission(operation, result string) {
	SubmissionsTotal.WithLabelValues(operation, result).Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
