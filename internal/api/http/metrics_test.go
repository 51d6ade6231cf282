package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jsworker/internal/infrastructure/monitoring"
)

type fakeWorkers struct {
	n    int
	full bool
}

func (f fakeWorkers) Count() int { return f.n }
func (f fakeWorkers) Full() bool { return f.full }

func TestAggregate(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	m.WorkerStarted("local")
	m.RecordHTTPRequest("GET", "/workers", "200", 0)
	m.RecordHTTPRequest("GET", "/workers", "500", 0)

	snap := NewMetricsAggregator(m, fakeWorkers{n: 2, full: true}).Aggregate()
	assert.Equal(t, int64(1), snap.Workers.WorkersActive)
	assert.Equal(t, int64(2), snap.Summary.TotalRequests)
	assert.InDelta(t, 0.5, snap.Summary.ErrorRate, 1e-9)
	assert.Equal(t, HostState{Running: 2, Full: true}, snap.Host)
}

func TestAggregateWithoutRequests(t *testing.T) {
	snap := NewMetricsAggregator(nil, nil).Aggregate()
	assert.Zero(t, snap.Summary.ErrorRate)
	assert.Equal(t, HostState{}, snap.Host)
}

func TestGetAggregatedMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics/json", NewMetricsAggregator(nil, fakeWorkers{n: 1}).GetAggregatedMetrics)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running":1`)
	assert.Contains(t, w.Body.String(), `"workers_active":0`)
}
