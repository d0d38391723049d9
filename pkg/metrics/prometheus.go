package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exports a Collector's aggregated per-backend stats as
// Prometheus metrics, alongside the JSON-lines request log Collector
// appends to. Register it on a prometheus.Registry and serve that registry
// with promhttp.HandlerFor from the caller.
type PrometheusCollector struct {
	c *Collector

	requests    *prometheus.Desc
	errors      *prometheus.Desc
	totalTokens *prometheus.Desc
	latencyP50  *prometheus.Desc
	latencyP95  *prometheus.Desc
	latencyP99  *prometheus.Desc
}

// NewPrometheusCollector wraps c for Prometheus export.
func NewPrometheusCollector(c *Collector) *PrometheusCollector {
	labels := []string{"backend"}
	return &PrometheusCollector{
		c:           c,
		requests:    prometheus.NewDesc("coreagent_backend_requests_total", "Total requests handled by this backend.", labels, nil),
		errors:      prometheus.NewDesc("coreagent_backend_errors_total", "Total errored requests for this backend.", labels, nil),
		totalTokens: prometheus.NewDesc("coreagent_backend_tokens_total", "Total tokens (in+out) consumed by this backend.", labels, nil),
		latencyP50:  prometheus.NewDesc("coreagent_backend_latency_p50_ms", "50th percentile request latency in milliseconds.", labels, nil),
		latencyP95:  prometheus.NewDesc("coreagent_backend_latency_p95_ms", "95th percentile request latency in milliseconds.", labels, nil),
		latencyP99:  prometheus.NewDesc("coreagent_backend_latency_p99_ms", "99th percentile request latency in milliseconds.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.requests
	ch <- p.errors
	ch <- p.totalTokens
	ch <- p.latencyP50
	ch <- p.latencyP95
	ch <- p.latencyP99
}

// Collect implements prometheus.Collector, rendering the current snapshot
// from Collector.Stats on every scrape rather than tracking its own state.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	for backend, stats := range p.c.Stats() {
		ch <- prometheus.MustNewConstMetric(p.requests, prometheus.CounterValue, float64(stats.Requests), backend)
		ch <- prometheus.MustNewConstMetric(p.errors, prometheus.CounterValue, float64(stats.Errors), backend)
		ch <- prometheus.MustNewConstMetric(p.totalTokens, prometheus.CounterValue, float64(stats.TotalTokens), backend)
		ch <- prometheus.MustNewConstMetric(p.latencyP50, prometheus.GaugeValue, float64(stats.LatencyP50), backend)
		ch <- prometheus.MustNewConstMetric(p.latencyP95, prometheus.GaugeValue, float64(stats.LatencyP95), backend)
		ch <- prometheus.MustNewConstMetric(p.latencyP99, prometheus.GaugeValue, float64(stats.LatencyP99), backend)
	}
}
