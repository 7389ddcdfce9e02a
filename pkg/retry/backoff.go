package retry

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Strategy names a backoff policy
type Strategy string

const (
	StrategyConstant              Strategy = "constant"
	StrategyLinear                Strategy = "linear"
	StrategyExponential           Strategy = "exponential"
	StrategyExponentialWithJitter Strategy = "exponential_jitter"
)

// ParseStrategy converts a config string into a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "constant":
		return StrategyConstant, nil
	case "linear":
		return StrategyLinear, nil
	case "exponential":
		return StrategyExponential, nil
	case "exponential_jitter", "jitter":
		return StrategyExponentialWithJitter, nil
	default:
		return "", fmt.Errorf("unknown backoff strategy: %s", s)
	}
}

// BackoffStrategy computes the delay to wait after a failed attempt.
// Implementations are pure apart from the random source used for jitter.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff waits the same delay before every retry
type ConstantBackoff struct {
	Delay    time.Duration
	MaxDelay time.Duration
}

// NextDelay returns Delay, capped at MaxDelay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	return clamp(cb.Delay, cb.MaxDelay)
}

// LinearBackoff grows the delay by BaseDelay per attempt
type LinearBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NextDelay returns BaseDelay*attempt, capped at MaxDelay
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if lb.BaseDelay > 0 && time.Duration(attempt) > lb.MaxDelay/lb.BaseDelay {
		return clamp(lb.MaxDelay, lb.MaxDelay)
	}
	return clamp(lb.BaseDelay*time.Duration(attempt), lb.MaxDelay)
}

// ExponentialBackoff doubles the delay per attempt, optionally with full jitter
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Jitter picks a uniform value in [0, exponential(attempt)]
	Jitter bool
	// Rand returns a value in [0,1); nil uses math/rand
	Rand func() float64
}

// NextDelay returns min(BaseDelay*2^attempt, MaxDelay), or a jittered value below it
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := exponential(eb.BaseDelay, eb.MaxDelay, attempt)
	if !eb.Jitter || delay <= 0 {
		return delay
	}

	random := eb.Rand
	if random == nil {
		random = rand.Float64
	}
	// Scale over delay+1 so the upper bound itself is reachable
	jittered := time.Duration(random() * float64(delay+1))
	return clamp(jittered, delay)
}

func exponential(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		if delay > max/2 {
			return clamp(max, max)
		}
		delay *= 2
	}
	return clamp(delay, max)
}

func clamp(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if max < 0 {
		max = 0
	}
	if d > max {
		return max
	}
	return d
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
