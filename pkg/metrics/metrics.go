// Package metrics exposes Prometheus collectors for exports and HTTP traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// ExportsTotal counts finished exports by mode ("selection", "discovery", "tree").
	ExportsTotal *prometheus.CounterVec

	// ExportBytes observes the on-disk size of each generated document.
	ExportBytes prometheus.Histogram

	// SkippedFilesTotal counts files left out of an export, by reason.
	SkippedFilesTotal *prometheus.CounterVec

	// RequestDuration observes HTTP handler latency by route and status code.
	RequestDuration *prometheus.HistogramVec
}

// New creates a registry with the Go and process collectors plus the direxpo metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "direxpo_exports_total",
				Help: "Total number of exports written.",
			},
			[]string{"mode"},
		),
		ExportBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "direxpo_export_bytes",
				Help:    "Size of generated export documents in bytes.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB .. 256MiB
			},
		),
		SkippedFilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "direxpo_skipped_files_total",
				Help: "Files left out of an export, by reason.",
			},
			[]string{"reason"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "direxpo_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Skip records a skipped file. Size-limit reasons embed the limit, so they are folded
// into a single label value to keep cardinality bounded.
func (m *Metrics) Skip(reason string) {
	if m == nil {
		return
	}
	m.SkippedFilesTotal.WithLabelValues(ReasonLabel(reason)).Inc()
}

// SkipCount records n files skipped for the same reason.
func (m *Metrics) SkipCount(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SkippedFilesTotal.WithLabelValues(ReasonLabel(reason)).Add(float64(n))
}

// Export records a finished export.
func (m *Metrics) Export(mode string, bytes int64) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(mode).Inc()
	m.ExportBytes.Observe(float64(bytes))
}

// ReasonLabel maps a skip reason to its metric label.
func ReasonLabel(reason string) string {
	const sizePrefix = "Exceeds max size"
	if len(reason) >= len(sizePrefix) && reason[:len(sizePrefix)] == sizePrefix {
		return sizePrefix
	}
	return reason
}
