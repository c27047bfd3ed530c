package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applymate/internal/config"
)

func limiterConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Limiter.RequestsPerMinute = 60
	cfg.Limiter.Burst = 2
	cfg.Limiter.FailureThreshold = 3
	cfg.Limiter.RecoveryTimeout = 50 * time.Millisecond
	return cfg
}

func TestAllowRespectsBurst(t *testing.T) {
	hl := NewHostLimiter(limiterConfig())
	defer hl.Stop()

	assert.True(t, hl.Allow("www.linkedin.com"))
	assert.True(t, hl.Allow("www.linkedin.com"))
	assert.False(t, hl.Allow("www.linkedin.com"), "burst of 2 exhausted")

	// Other hosts have their own budget.
	assert.True(t, hl.Allow("www.indeed.com"))
}

func TestAllowIsCaseInsensitiveOnHost(t *testing.T) {
	hl := NewHostLimiter(limiterConfig())
	defer hl.Stop()

	assert.True(t, hl.Allow("WWW.LinkedIn.com"))
	assert.True(t, hl.Allow("www.linkedin.com"))
	assert.False(t, hl.Allow("www.linkedin.com"))
}

func TestCircuitOpensAfterFailures(t *testing.T) {
	hl := NewHostLimiter(limiterConfig())
	defer hl.Stop()

	host := "careers.example.com"
	require.True(t, hl.Allow(host))

	for i := 0; i < 3; i++ {
		hl.RecordFailure(host, errors.New("submission failed"))
	}

	assert.False(t, hl.Allow(host), "circuit is open")

	stats := hl.Stats(host)
	assert.Equal(t, "open", stats["circuit_state"])
	assert.Equal(t, 3, stats["failure_count"])
}

func TestCircuitRecoversThroughHalfOpen(t *testing.T) {
	hl := NewHostLimiter(limiterConfig())
	defer hl.Stop()

	host := "careers.example.com"
	for i := 0; i < 3; i++ {
		hl.RecordFailure(host, errors.New("submission failed"))
	}
	require.False(t, hl.Allow(host))

	time.Sleep(60 * time.Millisecond)

	// Recovery timeout elapsed: one probe request goes through.
	assert.True(t, hl.Allow(host))
	hl.RecordSuccess(host)

	stats := hl.Stats(host)
	assert.Equal(t, "closed", stats["circuit_state"])
	assert.Equal(t, 0, stats["failure_count"])
}

func TestStatsTracksRequests(t *testing.T) {
	hl := NewHostLimiter(limiterConfig())
	defer hl.Stop()

	host := "careers.example.com"
	hl.Allow(host)
	hl.Allow(host)
	hl.RecordFailure(host, errors.New("submission failed"))

	stats := hl.Stats(host)
	assert.Equal(t, int64(2), stats["requests"])
	assert.Equal(t, int64(1), stats["failures"])
}
