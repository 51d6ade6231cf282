package host

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Register installs the host routes on r.
func (h *Host) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/workers", h.ListWorkers)
	r.DELETE("/workers/:id", h.TerminateWorker)
	r.GET("/spawn", h.Spawn)
}

// Health reports host status and capacity
func (h *Host) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     "jsworker host",
		"workers":     h.Count(),
		"max_workers": h.cfg.MaxWorkers,
	})
}

// ListWorkers lists running contexts
func (h *Host) ListWorkers(c *gin.Context) {
	workers := h.List()
	c.JSON(http.StatusOK, gin.H{
		"workers": workers,
		"count":   len(workers),
	})
}

// TerminateWorker stops a running context
func (h *Host) TerminateWorker(c *gin.Context) {
	workerID := c.Param("id")
	if !h.Terminate(workerID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found", "id": workerID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": workerID})
}

// Spawn upgrades the request and runs the requested context on it
func (h *Host) Spawn(c *gin.Context) {
	if h.Full() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrCapacity.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	h.Serve(c.Request.Context(), conn)
}
