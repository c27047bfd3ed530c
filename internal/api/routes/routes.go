package routes

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"applymate/internal/api/handlers"
)

// SetupRoutes configures the worker's operational endpoints.
func SetupRoutes(e *echo.Echo, checker handlers.Checker) {
	e.Use(echomiddleware.Recover())

	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(checker))
		health.GET("/live", handlers.LivenessHandler)
	}
}
