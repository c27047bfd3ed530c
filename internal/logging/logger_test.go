package logging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applymate/internal/logging/types"
)

type recordingAdapter struct {
	mu      sync.Mutex
	name    string
	entries []*types.LogEntry
}

func (a *recordingAdapter) Write(entry *types.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordingAdapter) Close() error { return nil }
func (a *recordingAdapter) Name() string { return a.name }

func (a *recordingAdapter) recorded() []*types.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*types.LogEntry(nil), a.entries...)
}

func newTestLogger(t *testing.T) (*MultiLogger, *recordingAdapter) {
	t.Helper()
	logger := NewMultiLogger()
	adapter := &recordingAdapter{name: "recording"}
	require.NoError(t, logger.AddAdapter(adapter))
	return logger, adapter
}

func TestLevelFiltering(t *testing.T) {
	logger, adapter := newTestLogger(t)
	logger.SetLevel(WarnLevel)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	entries := adapter.recorded()
	require.Len(t, entries, 2)
	assert.Equal(t, WarnLevel, entries[0].Level)
	assert.Equal(t, ErrorLevel, entries[1].Level)
}

func TestWithFieldCarriesContext(t *testing.T) {
	logger, adapter := newTestLogger(t)

	child := logger.WithField("component", "runner").WithField("application_id", "app-1")
	child.Info("claimed", map[string]interface{}{"attempt": 1})

	entries := adapter.recorded()
	require.Len(t, entries, 1)
	assert.Equal(t, "runner", entries[0].Fields["component"])
	assert.Equal(t, "app-1", entries[0].Fields["application_id"])
	assert.Equal(t, 1, entries[0].Fields["attempt"])

	// The parent logger is unaffected.
	logger.Info("plain")
	entries = adapter.recorded()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[1].Fields, "component")
}

func TestCallSiteFieldsWin(t *testing.T) {
	logger, adapter := newTestLogger(t)

	child := logger.WithField("host", "a.example.com")
	child.Info("request", map[string]interface{}{"host": "b.example.com"})

	entries := adapter.recorded()
	require.Len(t, entries, 1)
	assert.Equal(t, "b.example.com", entries[0].Fields["host"])
}

func TestDuplicateAdapterRejected(t *testing.T) {
	logger, _ := newTestLogger(t)
	assert.Error(t, logger.AddAdapter(&recordingAdapter{name: "recording"}))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, types.DebugLevel, types.ParseLogLevel("debug"))
	assert.Equal(t, types.WarnLevel, types.ParseLogLevel("WARNING"))
	assert.Equal(t, types.InfoLevel, types.ParseLogLevel("bogus"))
}
