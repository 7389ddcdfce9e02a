package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icloudalbum/pkg/config"
	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/logger"
)

// noSleep records requested delays without waiting
type noSleep struct {
	delays []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.delays = append(n.delays, d)
	return ctx.Err()
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  1 * time.Second,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 100 * time.Millisecond, "zeroth attempt"},
		{1, 200 * time.Millisecond, "first attempt"},
		{2, 400 * time.Millisecond, "second attempt"},
		{3, 800 * time.Millisecond, "third attempt"},
		{4, 1 * time.Second, "fourth attempt (capped at max)"},
		{40, 1 * time.Second, "large attempt does not overflow"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			assert.Equal(t, test.expected, backoff.NextDelay(test.attempt))
		})
	}
}

func TestExponentialBackoffIsNonDecreasing(t *testing.T) {
	policy := Policy{BaseDelay: 30 * time.Millisecond, MaxDelay: 2 * time.Second, Strategy: StrategyExponential}

	previous := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		delay := policy.Delay(attempt)
		assert.GreaterOrEqual(t, delay, previous, "attempt %d", attempt)
		assert.LessOrEqual(t, delay, policy.MaxDelay)
		previous = delay
	}
}

func TestExponentialBackoffWithJitterBounds(t *testing.T) {
	for _, r := range []float64{0, 0.25, 0.5, 0.999999} {
		r := r
		policy := Policy{
			BaseDelay: 100 * time.Millisecond,
			MaxDelay:  time.Second,
			Strategy:  StrategyExponentialWithJitter,
			Rand:      func() float64 { return r },
		}
		for attempt := 0; attempt < 8; attempt++ {
			delay := policy.Delay(attempt)
			upper := exponential(policy.BaseDelay, policy.MaxDelay, attempt)
			assert.GreaterOrEqual(t, delay, time.Duration(0))
			assert.LessOrEqual(t, delay, upper)
		}
	}

	zero := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, Strategy: StrategyExponentialWithJitter, Rand: func() float64 { return 0 }}
	assert.Equal(t, time.Duration(0), zero.Delay(3))
}

func TestExponentialBackoffWithJitterVaries(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Jitter:    true,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		delays[backoff.NextDelay(3)] = true
	}

	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func TestConstantBackoff(t *testing.T) {
	policy := Policy{BaseDelay: 250 * time.Millisecond, MaxDelay: time.Second, Strategy: StrategyConstant}
	for attempt := 0; attempt < 5; attempt++ {
		assert.Equal(t, 250*time.Millisecond, policy.Delay(attempt))
	}

	capped := Policy{BaseDelay: 5 * time.Second, MaxDelay: time.Second, Strategy: StrategyConstant}
	assert.Equal(t, time.Second, capped.Delay(1))
}

func TestLinearBackoff(t *testing.T) {
	backoff := &LinearBackoff{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  500 * time.Millisecond,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{5, 500 * time.Millisecond},
		{6, 500 * time.Millisecond}, // Capped at max
	}

	for _, test := range tests {
		delay := backoff.NextDelay(test.attempt)
		if delay != test.expected {
			t.Errorf("Attempt %d: expected %v, got %v", test.attempt, test.expected, delay)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := map[string]Strategy{
		"constant":           StrategyConstant,
		"LINEAR":             StrategyLinear,
		" exponential ":      StrategyExponential,
		"exponential_jitter": StrategyExponentialWithJitter,
		"jitter":             StrategyExponentialWithJitter,
	}
	for input, want := range tests {
		got, err := ParseStrategy(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseStrategy("fibonacci")
	assert.Error(t, err)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	bad := Policy{MaxRetries: -1, BaseDelay: time.Second, MaxDelay: time.Millisecond, Strategy: "nope"}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
	assert.Contains(t, err.Error(), "max delay")
	assert.Contains(t, err.Error(), "unknown backoff strategy")
}

func TestClassify(t *testing.T) {
	policy := Policy{
		RetryableStatusCodes: []int{429, 404},
		PermanentStatusCodes: []int{404, 401},
	}

	tests := []struct {
		name string
		err  error
		want Action
	}{
		{"transport", &errs.TransportError{Err: errors.New("connection reset")}, ActionRetry},
		{"retryable status", &errs.StatusError{Code: 429}, ActionRetry},
		{"server error", &errs.StatusError{Code: 503}, ActionRetry},
		{"permanent beats retryable", &errs.StatusError{Code: 404}, ActionFail},
		{"permanent", &errs.StatusError{Code: 401}, ActionFail},
		{"unlisted client error", &errs.StatusError{Code: 400}, ActionFail},
		{"decode", &errs.DecodeError{Err: errors.New("bad json")}, ActionFail},
		{"schema", &errs.SchemaError{}, ActionFail},
		{"cancelled", context.Canceled, ActionFail},
		{"unknown", errors.New("boom"), ActionFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Classify(tt.err))
		})
	}
}

func TestDoWithSuccess(t *testing.T) {
	attempts := 0
	sleeper := &noSleep{}

	result, stats, err := Do(context.Background(), Config{
		Policy: Policy{MaxRetries: 4, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Strategy: StrategyConstant},
		Sleep:  sleeper.sleep,
		Logger: logger.NewTestLogger(),
	}, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &errs.TransportError{Err: errors.New("temporary error")}
		}
		return "success", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, stats.Attempts)
	assert.True(t, stats.Succeeded)
	assert.False(t, stats.Degraded)
	assert.Equal(t, 20*time.Millisecond, stats.TotalDelay)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}, sleeper.delays)
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	sleeper := &noSleep{}
	log := logger.NewTestLogger()

	_, stats, err := Do(context.Background(), Config{
		Policy: Policy{MaxRetries: 2, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Strategy: StrategyExponential},
		Name:   "webstream",
		Sleep:  sleeper.sleep,
		Logger: log,
	}, func(ctx context.Context) (int, error) {
		attempts++
		return 0, &errs.StatusError{Code: 503}
	})

	require.Error(t, err)
	var exhausted *errs.RetryExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 503, errs.StatusCode(err))

	assert.Equal(t, 3, attempts)
	assert.False(t, stats.Succeeded)
	assert.Equal(t, "status error (code 503): ", stats.LastError)
	// No sleep before the first attempt or after the last one
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 40 * time.Millisecond}, sleeper.delays)
	assert.True(t, log.HasMessage("max retry attempts exceeded"))
}

func TestDoWithZeroRetries(t *testing.T) {
	attempts := 0
	_, stats, err := Do(context.Background(), Config{
		Policy: Policy{MaxRetries: 0, Strategy: StrategyConstant},
		Sleep:  (&noSleep{}).sleep,
	}, func(ctx context.Context) (int, error) {
		attempts++
		return 0, &errs.TransportError{Err: errors.New("down")}
	})

	var exhausted *errs.RetryExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, stats.Attempts)
}

func TestDoWithNonRetryableError(t *testing.T) {
	attempts := 0
	decodeErr := &errs.DecodeError{Endpoint: "webstream", Err: errors.New("unexpected EOF")}

	_, _, err := Do(context.Background(), Config{
		Policy: DefaultPolicy(),
		Sleep:  (&noSleep{}).sleep,
	}, func(ctx context.Context) (int, error) {
		attempts++
		return 0, decodeErr
	})

	if err != decodeErr {
		t.Errorf("Expected decode error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for decode error), got %d", attempts)
	}
}

func TestDoDegradesToZeroValue(t *testing.T) {
	_, stats, err := Do(context.Background(), Config{
		Policy: DefaultPolicy(),
		Classify: func(err error) Action {
			if errs.StatusCode(err) == 400 {
				return ActionDegrade
			}
			return ActionFail
		},
		Sleep: (&noSleep{}).sleep,
	}, func(ctx context.Context) (map[string]string, error) {
		return map[string]string{"stale": "value"}, &errs.StatusError{Code: 400}
	})

	require.NoError(t, err)
	assert.True(t, stats.Succeeded)
	assert.True(t, stats.Degraded)
	assert.Equal(t, 1, stats.Attempts)
}

func TestDoWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	_, _, err := Do(ctx, Config{
		Policy: Policy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Strategy: StrategyConstant},
	}, func(ctx context.Context) (int, error) {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return 0, &errs.TransportError{Err: errors.New("error")}
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 2, attempts)
}

func TestDoCallsOnRetry(t *testing.T) {
	var seen []int
	_, _, _ = Do(context.Background(), Config{
		Policy:  Policy{MaxRetries: 2, Strategy: StrategyConstant},
		Sleep:   (&noSleep{}).sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) { seen = append(seen, attempt) },
	}, func(ctx context.Context) (int, error) {
		return 0, &errs.StatusError{Code: 500}
	})

	assert.Equal(t, []int{1, 2}, seen)
}

func TestPolicyFromConfig(t *testing.T) {
	p, err := PolicyFromConfig(config.DefaultConfig().Retry)
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)

	cfg := config.DefaultConfig().Retry
	cfg.Strategy = "sometimes"
	_, err = PolicyFromConfig(cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig().Retry
	cfg.MaxDelay = time.Millisecond
	_, err = PolicyFromConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid retry policy")
}
