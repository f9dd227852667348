// Package metrics exposes Prometheus metrics for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BuildInfo labels the plat_ogc_build_info gauge.
type BuildInfo struct {
	Version   string
	Revision  string
	BuildDate string
}

// Provider owns the registry served on /metrics.
type Provider struct {
	reg *prometheus.Registry
}

// Init creates a registry with the Go and process collectors and a constant
// build info gauge.
func Init(build BuildInfo) *Provider {
	if build.Version == "" {
		build.Version = "dev"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "plat_ogc_build_info",
			Help: "Build of the running plat-ogc server. Always 1.",
			ConstLabels: prometheus.Labels{
				"version":    build.Version,
				"revision":   build.Revision,
				"build_date": build.BuildDate,
			},
		}, func() float64 { return 1 }),
	)
	return &Provider{reg: reg}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
