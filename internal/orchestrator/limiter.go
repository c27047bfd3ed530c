package orchestrator

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"applymate/internal/config"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
)

// hostLimiter represents rate limiting for a specific portal host
type hostLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	requests int64
	failures int64
	mu       sync.RWMutex
}

// circuitBreaker represents a circuit breaker for a portal host
type circuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	failureCount int
	lastFailTime time.Time
	state        circuitState
	mu           sync.RWMutex
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (cs circuitState) String() string {
	switch cs {
	case circuitClosed:
		return "closed"
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// HostLimiter manages rate limiting and circuit breaking per portal host,
// so a burst of applications cannot hammer a single job board.
type HostLimiter struct {
	cfg             *config.Config
	hostLimiters    map[string]*hostLimiter
	circuitBreakers map[string]*circuitBreaker
	mu              sync.RWMutex
	logger          types.Logger
	cleanupTicker   *time.Ticker
	stopCleanup     chan bool
}

// NewHostLimiter creates a per-host limiter from config.
func NewHostLimiter(cfg *config.Config) *HostLimiter {
	hl := &HostLimiter{
		cfg:             cfg,
		hostLimiters:    make(map[string]*hostLimiter),
		circuitBreakers: make(map[string]*circuitBreaker),
		logger:          logging.GetGlobalLogger().WithField("component", "host_limiter"),
		cleanupTicker:   time.NewTicker(5 * time.Minute),
		stopCleanup:     make(chan bool),
	}

	go hl.cleanupRoutine()

	return hl
}

// Allow checks whether a submission to the host may proceed.
func (hl *HostLimiter) Allow(host string) bool {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	host = strings.ToLower(host)

	if !hl.isCircuitClosed(host) {
		hl.logger.Debug("Request rejected by circuit breaker", map[string]interface{}{
			"host": host,
		})
		return false
	}

	limiter := hl.getHostLimiter(host)

	allowed := limiter.limiter.Allow()
	if allowed {
		limiter.mu.Lock()
		limiter.requests++
		limiter.lastSeen = time.Now()
		limiter.mu.Unlock()
	} else {
		hl.logger.Debug("Request rejected by rate limiter", map[string]interface{}{
			"host": host,
		})
	}

	return allowed
}

// RecordSuccess records a successful submission for the host.
func (hl *HostLimiter) RecordSuccess(host string) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	host = strings.ToLower(host)

	if cb, exists := hl.circuitBreakers[host]; exists {
		cb.mu.Lock()
		if cb.state == circuitHalfOpen {
			cb.state = circuitClosed
			cb.failureCount = 0
			hl.logger.Info("Circuit breaker closed after successful request", map[string]interface{}{
				"host": host,
			})
		}
		cb.mu.Unlock()
	}
}

// RecordFailure records a failed submission for the host.
func (hl *HostLimiter) RecordFailure(host string, err error) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	host = strings.ToLower(host)

	if limiter, exists := hl.hostLimiters[host]; exists {
		limiter.mu.Lock()
		limiter.failures++
		limiter.mu.Unlock()
	}

	cb := hl.getCircuitBreaker(host)
	cb.mu.Lock()
	cb.failureCount++
	cb.lastFailTime = time.Now()

	if cb.failureCount >= cb.maxFailures && cb.state == circuitClosed {
		cb.state = circuitOpen
		hl.logger.Warn("Circuit breaker opened due to failures", map[string]interface{}{
			"host":     host,
			"failures": cb.failureCount,
			"error":    err.Error(),
		})
	}
	cb.mu.Unlock()
}

func (hl *HostLimiter) getHostLimiter(host string) *hostLimiter {
	if limiter, exists := hl.hostLimiters[host]; exists {
		return limiter
	}

	rps := rate.Limit(float64(hl.cfg.Limiter.RequestsPerMinute) / 60.0)
	burst := hl.cfg.Limiter.Burst
	if burst < 1 {
		burst = 1
	}

	limiter := &hostLimiter{
		limiter:  rate.NewLimiter(rps, burst),
		lastSeen: time.Now(),
	}

	hl.hostLimiters[host] = limiter

	hl.logger.Info("Created new host rate limiter", map[string]interface{}{
		"host":  host,
		"rate":  float64(rps),
		"burst": burst,
	})

	return limiter
}

func (hl *HostLimiter) getCircuitBreaker(host string) *circuitBreaker {
	if cb, exists := hl.circuitBreakers[host]; exists {
		return cb
	}

	cb := &circuitBreaker{
		maxFailures:  hl.cfg.Limiter.FailureThreshold,
		resetTimeout: hl.cfg.Limiter.RecoveryTimeout,
		state:        circuitClosed,
	}
	if cb.maxFailures < 1 {
		cb.maxFailures = 5
	}
	if cb.resetTimeout <= 0 {
		cb.resetTimeout = 5 * time.Minute
	}

	hl.circuitBreakers[host] = cb
	return cb
}

func (hl *HostLimiter) isCircuitClosed(host string) bool {
	cb := hl.getCircuitBreaker(host)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(cb.lastFailTime) > cb.resetTimeout {
			cb.state = circuitHalfOpen
			hl.logger.Info("Circuit breaker transitioned to half-open", map[string]interface{}{
				"host": host,
			})
			return true
		}
		return false
	case circuitHalfOpen:
		return true
	default:
		return false
	}
}

// Stats returns limiter and breaker statistics for a host.
func (hl *HostLimiter) Stats(host string) map[string]interface{} {
	hl.mu.RLock()
	defer hl.mu.RUnlock()

	host = strings.ToLower(host)
	stats := make(map[string]interface{})

	if limiter, exists := hl.hostLimiters[host]; exists {
		limiter.mu.RLock()
		stats["requests"] = limiter.requests
		stats["failures"] = limiter.failures
		stats["last_seen"] = limiter.lastSeen
		limiter.mu.RUnlock()
	}

	if cb, exists := hl.circuitBreakers[host]; exists {
		cb.mu.RLock()
		stats["circuit_state"] = cb.state.String()
		stats["failure_count"] = cb.failureCount
		cb.mu.RUnlock()
	}

	return stats
}

func (hl *HostLimiter) cleanupRoutine() {
	for {
		select {
		case <-hl.cleanupTicker.C:
			hl.cleanup()
		case <-hl.stopCleanup:
			hl.cleanupTicker.Stop()
			return
		}
	}
}

func (hl *HostLimiter) cleanup() {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)

	for host, limiter := range hl.hostLimiters {
		limiter.mu.RLock()
		lastSeen := limiter.lastSeen
		limiter.mu.RUnlock()

		if lastSeen.Before(cutoff) {
			delete(hl.hostLimiters, host)
		}
	}

	for host, cb := range hl.circuitBreakers {
		cb.mu.RLock()
		lastFailTime := cb.lastFailTime
		state := cb.state
		cb.mu.RUnlock()

		if state == circuitClosed && lastFailTime.Before(cutoff) {
			delete(hl.circuitBreakers, host)
		}
	}
}

// Stop stops the limiter's cleanup routine.
func (hl *HostLimiter) Stop() {
	hl.stopCleanup <- true
}
