package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coreagent/pkg/config"
	"coreagent/pkg/metrics"
)

// setupMetrics builds the request collector cfg asks for and, if
// PrometheusAddr is set, starts a background /metrics scrape endpoint.
// Returns nil when metrics are disabled.
func setupMetrics(cfg config.MetricsConfig) (*metrics.Collector, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	collector, err := metrics.NewCollector(metrics.Config{
		Enabled:     true,
		Path:        cfg.Path,
		LogRequests: cfg.Path != "",
	})
	if err != nil {
		return nil, err
	}
	if cfg.PrometheusAddr != "" {
		serveMetrics(cfg.PrometheusAddr, collector)
	}
	return collector, nil
}

func serveMetrics(addr string, collector *metrics.Collector) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewPrometheusCollector(collector))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}
