package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceObserveGeneration(t *testing.T) {
	m := NewMetricsService()
	m.ObserveGeneration(OutcomeSuccess, 2*time.Second, 42)
	m.ObserveGeneration(OutcomeInfeasible, time.Second, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.generationsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generationsTotal.WithLabelValues(OutcomeInfeasible)))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.entriesGenerated))
}

func TestMetricsServiceHandlerExposesSeries(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/timetable/generate", http.StatusOK, 10*time.Millisecond)
	m.RecordCacheLookup("faculty-load", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), `report_cache_lookups_total{report="faculty-load",result="hit"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveGeneration(OutcomeSuccess, time.Second, 1)
	m.RecordNotification("sent")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
