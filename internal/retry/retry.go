package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"applymate/internal/logging"
	"applymate/pkg/utils"
)

// Strategy selects how retry delays grow across attempts.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
	StrategyFibonacci   Strategy = "fibonacci"
)

// ParseStrategy maps a config string onto a Strategy, defaulting to
// exponential.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(s)) {
	case StrategyFixed, StrategyLinear, StrategyExponential, StrategyFibonacci:
		return Strategy(strings.ToLower(s))
	default:
		return StrategyExponential
	}
}

// Config controls the retry loop.
type Config struct {
	MaxAttempts int
	Strategy    Strategy
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool
}

// DefaultConfig is the retry behavior used when a caller has no specific
// requirements.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Strategy:    StrategyExponential,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

const jitterRange = 0.1

// Delay computes the wait before the next attempt. attempt is zero-based:
// the delay after the first failure is Delay(0, cfg).
func Delay(attempt int, cfg Config) time.Duration {
	base := cfg.BaseDelay.Seconds()
	var seconds float64

	switch cfg.Strategy {
	case StrategyLinear:
		seconds = base * float64(attempt+1)
	case StrategyFibonacci:
		if attempt <= 1 {
			seconds = base
		} else {
			a, b := 1, 1
			for i := 0; i < attempt-1; i++ {
				a, b = b, a+b
			}
			seconds = base * float64(b)
		}
	case StrategyFixed:
		seconds = base
	default: // exponential
		multiplier := cfg.Multiplier
		if multiplier <= 0 {
			multiplier = 2.0
		}
		seconds = base
		for i := 0; i < attempt; i++ {
			seconds *= multiplier
		}
	}

	if max := cfg.MaxDelay.Seconds(); max > 0 && seconds > max {
		seconds = max
	}

	if cfg.Jitter {
		seconds += seconds * jitterRange * (rand.Float64()*2 - 1)
		if seconds < 0 {
			seconds = 0
		}
	}

	return time.Duration(seconds * float64(time.Second))
}

// Do runs op until it succeeds, exhausts cfg.MaxAttempts, or fails with an
// error whose severity rules out retrying. Only low and medium severity
// errors are retried. The last error is returned when all attempts fail.
// fields carries the caller's operation context (job URL, selector) into
// every per-attempt log entry; nil is fine.
func Do(ctx context.Context, name string, cfg Config, fields map[string]interface{}, op func(ctx context.Context) error) error {
	logger := logging.GetGlobalLogger()

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Debug("Executing operation", mergeFields(fields, map[string]interface{}{
			"operation": name,
			"attempt":   attempt + 1,
			"max":       cfg.MaxAttempts,
		}))

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("Operation succeeded after retry", mergeFields(fields, map[string]interface{}{
					"operation": name,
					"attempt":   attempt + 1,
				}))
			}
			return nil
		}
		lastErr = err

		severity := utils.SeverityOf(err)
		if !utils.IsRetryable(err) {
			logger.Error("Operation failed with non-retryable error", mergeFields(fields, map[string]interface{}{
				"operation": name,
				"attempt":   attempt + 1,
				"severity":  severity.String(),
				"error":     err.Error(),
			}))
			return err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := Delay(attempt, cfg)
		logger.Warn("Operation failed, retrying", mergeFields(fields, map[string]interface{}{
			"operation": name,
			"attempt":   attempt + 1,
			"severity":  severity.String(),
			"delay":     delay.String(),
			"error":     err.Error(),
		}))

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	logger.Error("Operation failed after all attempts", mergeFields(fields, map[string]interface{}{
		"operation": name,
		"attempts":  cfg.MaxAttempts,
		"error":     lastErr.Error(),
	}))
	return lastErr
}

// mergeFields overlays the attempt-specific entries on the caller's
// context fields. The caller's map is never mutated.
func mergeFields(base, extra map[string]interface{}) map[string]interface{} {
	if len(base) == 0 {
		return extra
	}
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
