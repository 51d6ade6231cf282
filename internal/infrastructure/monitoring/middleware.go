package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Process request
		c.Next()

		// Route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordHTTPRequest(method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures capability call duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	name    string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, name string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		name:    name,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(status string) {
	t.metrics.RecordCapabilityCall(t.name, status, time.Since(t.start))
}
