package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"applymate/internal/logging"
	"applymate/internal/logging/types"
)

// ScreenshotMetadata is the sidecar record written next to each capture.
type ScreenshotMetadata struct {
	ApplicationID string    `json:"application_id"`
	Step          string    `json:"step"`
	URL           string    `json:"url"`
	Filename      string    `json:"filename"`
	CapturedAt    time.Time `json:"captured_at"`
	SizeBytes     int       `json:"size_bytes"`
}

// Capturer saves page screenshots for application audit trails. All
// failures are logged and swallowed; a missing screenshot never fails a
// submission.
type Capturer struct {
	dir     string
	enabled bool
	logger  types.Logger

	mu       sync.Mutex
	captured map[string][]ScreenshotMetadata
}

// NewCapturer creates a screenshot capturer writing into dir.
func NewCapturer(dir string, enabled bool) *Capturer {
	return &Capturer{
		dir:      dir,
		enabled:  enabled,
		logger:   logging.GetGlobalLogger(),
		captured: make(map[string][]ScreenshotMetadata),
	}
}

// Capture takes a screenshot of the page and writes it with a JSON
// metadata sidecar. Returns the saved file path, or "" when disabled or
// the capture failed.
func (c *Capturer) Capture(ctx context.Context, page Page, applicationID, step string) string {
	if !c.enabled {
		return ""
	}

	data, err := page.Screenshot(ctx)
	if err != nil {
		c.logger.Warn("Screenshot capture failed", map[string]interface{}{
			"application_id": applicationID,
			"step":           step,
			"error":          err.Error(),
		})
		return ""
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn("Screenshot directory creation failed", map[string]interface{}{
			"dir":   c.dir,
			"error": err.Error(),
		})
		return ""
	}

	filename := fmt.Sprintf("%s_%s_%d.png", applicationID, step, time.Now().UnixMilli())
	path := filepath.Join(c.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.logger.Warn("Screenshot write failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return ""
	}

	meta := ScreenshotMetadata{
		ApplicationID: applicationID,
		Step:          step,
		URL:           page.URL(),
		Filename:      filename,
		CapturedAt:    time.Now().UTC(),
		SizeBytes:     len(data),
	}
	c.writeSidecar(path, meta)

	c.mu.Lock()
	c.captured[applicationID] = append(c.captured[applicationID], meta)
	c.mu.Unlock()

	c.logger.Debug("Screenshot captured", map[string]interface{}{
		"application_id": applicationID,
		"step":           step,
		"path":           path,
	})
	return path
}

// Captured returns the metadata recorded for an application this run.
func (c *Capturer) Captured(applicationID string) []ScreenshotMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScreenshotMetadata, len(c.captured[applicationID]))
	copy(out, c.captured[applicationID])
	return out
}

// Forget drops the in-memory metadata for an application once its run is
// persisted.
func (c *Capturer) Forget(applicationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.captured, applicationID)
}

func (c *Capturer) writeSidecar(pngPath string, meta ScreenshotMetadata) {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return
	}
	sidecar := pngPath[:len(pngPath)-len(filepath.Ext(pngPath))] + ".json"
	if err := os.WriteFile(sidecar, data, 0o644); err != nil {
		c.logger.Debug("Screenshot metadata write failed", map[string]interface{}{
			"path":  sidecar,
			"error": err.Error(),
		})
	}
}
