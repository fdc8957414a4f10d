package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportAndSkipCounters(t *testing.T) {
	m := New()

	m.Export("selection", 2048)
	m.Export("selection", 10)
	m.Export("tree", 100)
	m.Skip("Exceeds max size (1MB)")
	m.Skip("Exceeds max size (0.5MB)")
	m.Skip("Not a file")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExportsTotal.WithLabelValues("selection")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsTotal.WithLabelValues("tree")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SkippedFilesTotal.WithLabelValues("Exceeds max size")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedFilesTotal.WithLabelValues("Not a file")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExportBytes))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Export("selection", 1)
		m.Skip("Not a file")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Export("discovery", 1)
	m.RequestDuration.WithLabelValues("/api/run", "200").Observe(0.1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `direxpo_exports_total{mode="discovery"} 1`)
	assert.Contains(t, body, "direxpo_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}

func TestReasonLabel(t *testing.T) {
	assert.Equal(t, "Exceeds max size", ReasonLabel("Exceeds max size (50MB)"))
	assert.Equal(t, "Invalid path", ReasonLabel("Invalid path"))
}
