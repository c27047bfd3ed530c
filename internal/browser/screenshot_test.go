package browser_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applymate/internal/browser"
	"applymate/internal/browser/browsertest"
)

func TestCapturerWritesImageAndSidecar(t *testing.T) {
	dir := t.TempDir()
	page := browsertest.NewFakePage("https://jobs.example.com/apply")

	c := browser.NewCapturer(dir, true)
	path := c.Capture(context.Background(), page, "app-1", "01_initial_page")
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	raw, err := os.ReadFile(sidecar)
	require.NoError(t, err)

	var meta browser.ScreenshotMetadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "app-1", meta.ApplicationID)
	assert.Equal(t, "01_initial_page", meta.Step)
	assert.Equal(t, "https://jobs.example.com/apply", meta.URL)
	assert.Equal(t, len(data), meta.SizeBytes)
}

func TestCapturerTracksPerApplication(t *testing.T) {
	dir := t.TempDir()
	page := browsertest.NewFakePage("https://jobs.example.com/apply")

	c := browser.NewCapturer(dir, true)
	c.Capture(context.Background(), page, "app-1", "01_initial_page")
	c.Capture(context.Background(), page, "app-1", "04_submitted")
	c.Capture(context.Background(), page, "app-2", "01_initial_page")

	assert.Len(t, c.Captured("app-1"), 2)
	assert.Len(t, c.Captured("app-2"), 1)

	c.Forget("app-1")
	assert.Empty(t, c.Captured("app-1"))
	assert.Len(t, c.Captured("app-2"), 1)
}

func TestCapturerDisabled(t *testing.T) {
	page := browsertest.NewFakePage("https://jobs.example.com/apply")

	c := browser.NewCapturer(t.TempDir(), false)
	assert.Empty(t, c.Capture(context.Background(), page, "app-1", "01_initial_page"))
	assert.Zero(t, page.Shots)
}
