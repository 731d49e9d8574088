package querylog

import (
	"time"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/prometheus/client_golang/prometheus"
)

// MustRegisterMetrics registers the query log metrics on the given registry.
// It panics if metrics with the same names are already registered.
func MustRegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(publishDuration, publishCounter, processDuration, processCounter)
}

func samplePublish(kind aql.Kind, elapsed time.Duration, err error) {
	labels := metricLabels(kind, err)
	publishDuration.With(labels).Observe(elapsed.Seconds())
	publishCounter.With(labels).Inc()
}

func sampleProcess(kind aql.Kind, elapsed time.Duration, err error) {
	labels := metricLabels(kind, err)
	processDuration.With(labels).Observe(elapsed.Seconds())
	processCounter.With(labels).Inc()
}

func metricLabels(kind aql.Kind, err error) prometheus.Labels {
	status := "ok"
	if err != nil {
		status = "error"
	}
	return prometheus.Labels{
		"status": status,
		"kind":   string(kind),
	}
}

var (
	publishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "querylog_publish_duration_seconds",
			Help: "Duration of query log entry publish",
			Buckets: []float64{
				.01, .025, .05, .1, .2, .3, .4, .5, .75, 1, 2, 5, 10,
			},
		},
		[]string{"status", "kind"},
	)
	publishCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querylog_publish_total",
			Help: "Total of published query log entries",
		},
		[]string{"status", "kind"},
	)
	processDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "querylog_process_duration_seconds",
			Help: "Duration of query log entry handling",
			Buckets: []float64{
				.01, .025, .05, .1, .2, .3, .4, .5, .75, 1, 2, 5, 10, 30, 60,
			},
		},
		[]string{"status", "kind"},
	)
	processCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querylog_process_total",
			Help: "Total of handled query log entries",
		},
		[]string{"status", "kind"},
	)
)
