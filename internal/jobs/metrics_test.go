package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("students:overdue").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("students:overdue").End(boom), boom)
	m.AddAffected("students:overdue", 3)
	m.AddAffected("students:overdue", 0)

	body := scrape(t, reg)
	assert.Contains(t, body, `gymdesk_jobs_total{job="students:overdue",status="success"} 1`)
	assert.Contains(t, body, `gymdesk_jobs_total{job="students:overdue",status="failure"} 1`)
	assert.Contains(t, body, `gymdesk_jobs_failures_total{job="students:overdue"} 1`)
	assert.Contains(t, body, `gymdesk_job_affected_rows_total{job="students:overdue"} 3`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NoError(t, m.Track("x").End(nil))
	m.AddAffected("x", 5)
}
