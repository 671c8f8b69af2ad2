package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/textproof/textproof/internal/metrics"
)

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct{}

// NewMetricsHandler creates a MetricsHandler.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Register registers the metrics route.
func (h *MetricsHandler) Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}
