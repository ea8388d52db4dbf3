package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry         *prometheus.Registry
	exportsTotal     *prometheus.CounterVec
	exportDuration   *prometheus.HistogramVec
	activeExports    prometheus.Gauge
	outputsTotal     prometheus.Counter
	outputBytesTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imaginify_worker_exports_total",
			Help: "Export tasks by final status.",
		}, []string{"status"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imaginify_worker_export_duration_seconds",
			Help:    "Time to fetch, re-encode and store one export.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		activeExports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imaginify_worker_active_exports",
			Help: "Exports currently holding a worker slot.",
		}),
		outputsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imaginify_worker_outputs_total",
			Help: "Renditions written by the worker.",
		}),
		outputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imaginify_worker_output_bytes_total",
			Help: "Bytes of renditions written by the worker.",
		}),
	}

	registry.MustRegister(
		m.exportsTotal,
		m.exportDuration,
		m.activeExports,
		m.outputsTotal,
		m.outputBytesTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
