package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/jsworker/internal/infrastructure/monitoring"
)

// Workers reports host occupancy.
type Workers interface {
	Count() int
	Full() bool
}

// MetricsAggregator combines worker metrics with host state for the JSON API
type MetricsAggregator struct {
	metrics *monitoring.Metrics
	workers Workers
	started time.Time
}

// NewMetricsAggregator creates a metrics aggregator. workers may be nil.
func NewMetricsAggregator(metrics *monitoring.Metrics, workers Workers) *MetricsAggregator {
	return &MetricsAggregator{
		metrics: metrics,
		workers: workers,
		started: time.Now(),
	}
}

// MetricsSnapshot represents a snapshot of all host metrics
type MetricsSnapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Workers   monitoring.Snapshot `json:"workers"`
	Host      HostState           `json:"host"`
	Summary   MetricsSummary      `json:"summary"`
}

// HostState is the live worker table
type HostState struct {
	Running int  `json:"running"`
	Full    bool `json:"full"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests int64   `json:"total_requests"`
	ErrorRate     float64 `json:"error_rate"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Aggregate builds the current snapshot
func (ma *MetricsAggregator) Aggregate() MetricsSnapshot {
	snap := ma.metrics.Snapshot()
	out := MetricsSnapshot{
		Timestamp: time.Now(),
		Workers:   snap,
		Summary: MetricsSummary{
			TotalRequests: snap.TotalRequests,
			UptimeSeconds: time.Since(ma.started).Seconds(),
		},
	}
	if snap.TotalRequests > 0 {
		out.Summary.ErrorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}
	if ma.workers != nil {
		out.Host = HostState{Running: ma.workers.Count(), Full: ma.workers.Full()}
	}
	return out
}

// GetAggregatedMetrics returns the snapshot as JSON
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, ma.Aggregate())
}
