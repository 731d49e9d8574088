package main

import (
	"net/http"
	"runtime/debug"

	"github.com/birdie-ai/arangoql/arango"
	"github.com/birdie-ai/arangoql/querylog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "aqlc_build_info",
		Help: "Build information of aqlc",
	},
	[]string{"revision", "goversion"},
)

// newRegistry creates a registry with all the metrics sampled while executing specs.
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(buildInfo)
	arango.MustRegisterMetrics(registry)
	querylog.MustRegisterMetrics(registry)
	sampleBuildInfo()
	return registry
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(newRegistry(), promhttp.HandlerOpts{})
}

// sampleBuildInfo sets the aqlc_build_info gauge, once is enough.
func sampleBuildInfo() {
	goVersion := "undefined"
	revision := "undefined"

	if info, ok := debug.ReadBuildInfo(); ok {
		goVersion = info.GoVersion
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				revision = setting.Value
			}
		}
	}
	buildInfo.With(prometheus.Labels{
		"goversion": goVersion,
		"revision":  revision,
	}).Set(1)
}
