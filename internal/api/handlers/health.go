package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applymate/internal/logging"
	"applymate/pkg/models"
	"applymate/pkg/utils"
)

var startTime = time.Now()

// Checker reports the health of the worker's dependencies.
type Checker struct {
	Browser func() bool
	Store   func() bool
	Queue   func() bool
}

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	requestID := utils.GenerateRequestID()
	logger := logging.GetGlobalLogger()

	logger.Debug("Health check requested", map[string]interface{}{"request_id": requestID})

	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(startTime),
		Checks: map[string]string{
			"api": "ok",
		},
	}

	return c.JSON(http.StatusOK, response)
}

// ReadinessHandler reports whether the worker can take applications: the
// browser process, application store, and task queue all have to answer.
func ReadinessHandler(checker Checker) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := logging.GetGlobalLogger()

		logger.Debug("Readiness check requested", map[string]interface{}{"request_id": requestID})

		checks := map[string]string{"api": "ok"}
		status := "ready"
		code := http.StatusOK

		for name, probe := range map[string]func() bool{
			"browser": checker.Browser,
			"store":   checker.Store,
			"queue":   checker.Queue,
		} {
			if probe == nil {
				continue
			}
			if probe() {
				checks[name] = "ok"
			} else {
				checks[name] = "unavailable"
				status = "not ready"
				code = http.StatusServiceUnavailable
			}
		}

		response := models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Uptime:    time.Since(startTime),
			Checks:    checks,
		}

		return c.JSON(code, response)
	}
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	response := models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(startTime),
	}

	return c.JSON(http.StatusOK, response)
}
