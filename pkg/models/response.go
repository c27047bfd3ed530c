package models

import "time"

// HealthResponse is the payload of the worker health endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// RunResult is returned by the orchestrator entry point, one per queued task
type RunResult struct {
	Success         bool   `json:"success"`
	ApplicationID   string `json:"application_id"`
	ConfirmationID  string `json:"confirmation_id,omitempty"`
	ScreenshotCount int    `json:"screenshot_count"`
	Error           string `json:"error,omitempty"`
}
