package api

import (
	"github.com/labstack/echo/v4"
)

// SetupRoutes registers the application's routes on the Echo instance.
// Everything under /api/v1 requires the shared app key; the health endpoint
// stays open for monitoring.
func SetupRoutes(e *echo.Echo, h *Handler, appKey string) {
	e.GET("/health", h.HealthCheckHandler)

	v1 := e.Group("/api/v1", appKeyAuth(appKey))
	v1.POST("/scrape", h.ScrapeAllHandler)
	v1.POST("/scrape/stores/:id", h.ScrapeStoreHandler)
	v1.GET("/status", h.StatusHandler)
}
