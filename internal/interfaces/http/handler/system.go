package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SystemHandler serves the operational endpoints
type SystemHandler struct {
	metrics http.Handler
}

// NewSystemHandler creates a SystemHandler. metrics may be nil.
func NewSystemHandler(metrics http.Handler) *SystemHandler {
	return &SystemHandler{metrics: metrics}
}

// Health answers "ok" while the process serves requests
func (h *SystemHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Metrics exposes the Prometheus registry
func (h *SystemHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.ServeHTTP(c.Writer, c.Request)
}
