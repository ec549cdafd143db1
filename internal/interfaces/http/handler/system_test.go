package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSystemHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP bridge_factory_in_flight\n"))
	})

	r := gin.New()
	h := NewSystemHandler(metrics)
	r.GET("/healthz", h.Health)
	r.GET("/metrics", h.Metrics)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bridge_factory_in_flight")
}

func TestSystemHandler_NoMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/metrics", NewSystemHandler(nil).Metrics)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
