package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applymate/pkg/utils"
)

func TestDelayExponentialSchedule(t *testing.T) {
	cfg := Config{
		Strategy:   StrategyExponential,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     false,
	}

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}

	for attempt, want := range expected {
		assert.Equal(t, want, Delay(attempt, cfg), "attempt %d", attempt)
	}
}

func TestDelayLinearSchedule(t *testing.T) {
	cfg := Config{
		Strategy:  StrategyLinear,
		BaseDelay: time.Second,
		MaxDelay:  60 * time.Second,
		Jitter:    false,
	}

	assert.Equal(t, 1*time.Second, Delay(0, cfg))
	assert.Equal(t, 2*time.Second, Delay(1, cfg))
	assert.Equal(t, 3*time.Second, Delay(2, cfg))
}

func TestDelayFibonacciSchedule(t *testing.T) {
	cfg := Config{
		Strategy:  StrategyFibonacci,
		BaseDelay: time.Second,
		MaxDelay:  60 * time.Second,
		Jitter:    false,
	}

	expected := []time.Duration{
		1 * time.Second,
		1 * time.Second,
		2 * time.Second,
		3 * time.Second,
		5 * time.Second,
		8 * time.Second,
	}

	for attempt, want := range expected {
		assert.Equal(t, want, Delay(attempt, cfg), "attempt %d", attempt)
	}
}

func TestDelayFixedSchedule(t *testing.T) {
	cfg := Config{
		Strategy:  StrategyFixed,
		BaseDelay: 2 * time.Second,
		MaxDelay:  60 * time.Second,
		Jitter:    false,
	}

	for attempt := 0; attempt < 4; attempt++ {
		assert.Equal(t, 2*time.Second, Delay(attempt, cfg))
	}
}

func TestDelayJitterStaysInRange(t *testing.T) {
	cfg := Config{
		Strategy:  StrategyFixed,
		BaseDelay: 10 * time.Second,
		MaxDelay:  60 * time.Second,
		Jitter:    true,
	}

	for i := 0; i < 100; i++ {
		d := Delay(0, cfg)
		assert.GreaterOrEqual(t, d, 9*time.Second)
		assert.LessOrEqual(t, d, 11*time.Second)
	}
}

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts: maxAttempts,
		Strategy:    StrategyFixed,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		Jitter:      false,
	}
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(3), nil, func(ctx context.Context) error {
		calls++
		return utils.NewNetworkError("connection reset", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoSucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(3), nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return utils.NewNetworkError("connection reset", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryHighSeverity(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(3), nil, func(ctx context.Context) error {
		calls++
		return utils.NewNavigationError("client error: HTTP 404", utils.SeverityHigh, nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoDoesNotRetryCriticalSeverity(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(5), nil, func(ctx context.Context) error {
		calls++
		return utils.NewBrowserError("browser crashed", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoClassifiesForeignErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(2), nil, func(ctx context.Context) error {
		calls++
		return errors.New("request timeout while loading page")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls, "timeout errors are medium severity and retried")
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	cfg := Config{
		MaxAttempts: 10,
		Strategy:    StrategyFixed,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
		Jitter:      false,
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, "op", cfg, nil, func(ctx context.Context) error {
		calls++
		return utils.NewNetworkError("connection reset", nil)
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestMergeFieldsKeepsCallerContext(t *testing.T) {
	base := map[string]interface{}{"url": "https://jobs.example.com", "selector": `input[type="email"]`}

	merged := mergeFields(base, map[string]interface{}{"operation": "navigate", "attempt": 2})
	assert.Equal(t, "https://jobs.example.com", merged["url"])
	assert.Equal(t, `input[type="email"]`, merged["selector"])
	assert.Equal(t, "navigate", merged["operation"])
	assert.Equal(t, 2, merged["attempt"])

	// The caller's map stays untouched for the next attempt.
	assert.Len(t, base, 2)

	attempt := map[string]interface{}{"operation": "navigate"}
	assert.Equal(t, attempt, mergeFields(nil, attempt))
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, StrategyFixed, ParseStrategy("fixed"))
	assert.Equal(t, StrategyFibonacci, ParseStrategy("FIBONACCI"))
	assert.Equal(t, StrategyExponential, ParseStrategy("bogus"))
}
