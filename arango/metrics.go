package arango

import (
	"strconv"
	"time"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/prometheus/client_golang/prometheus"
)

// MustRegisterMetrics registers the statement execution metrics on the given registry.
// It panics if metrics with the same names are already registered.
func MustRegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(statementDuration, statementCounter, retryCounter)
}

func sampleStatement(kind aql.Kind, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := prometheus.Labels{
		"status": status,
		"kind":   string(kind),
	}
	statementDuration.With(labels).Observe(elapsed.Seconds())
	statementCounter.With(labels).Inc()
}

func sampleRetry(status int, _ error) {
	reason := "error"
	if status != 0 {
		reason = strconv.Itoa(status)
	}
	retryCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

var (
	statementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "arangoql_statement_duration_seconds",
			Help: "Duration of AQL statements execution, reading all the batches of the result",
			Buckets: []float64{
				.005, .01, .025, .05, .1, .2, .3, .4, .5, .75, 1,
				2, 3, 4, 5, 10, 15, 20, 30, 60,
			},
		},
		[]string{"status", "kind"},
	)
	statementCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arangoql_statement_total",
			Help: "Total of executed AQL statements",
		},
		[]string{"status", "kind"},
	)
	retryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arangoql_http_retries_total",
			Help: "Total of retried HTTP requests, by status code or \"error\" for network errors",
		},
		[]string{"reason"},
	)
)
