package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"icloudalbum/pkg/config"
	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/logger"
)

// Operation is an idempotent unit of work that may be attempted several times
type Operation[T any] func(ctx context.Context) (T, error)

// Action is the executor's decision for a failed attempt
type Action int

const (
	// ActionFail stops immediately and returns the error unchanged
	ActionFail Action = iota
	// ActionRetry sleeps and tries again while attempts remain
	ActionRetry
	// ActionDegrade stops and reports success with the zero value
	ActionDegrade
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionDegrade:
		return "degrade"
	default:
		return "fail"
	}
}

// Classifier maps an attempt error to an Action
type Classifier func(err error) Action

// Policy describes how many times to attempt an operation and how long to wait in between
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Strategy   Strategy
	// RetryableStatusCodes are retried in addition to every 5xx
	RetryableStatusCodes []int
	// PermanentStatusCodes are never retried, even when also listed as retryable
	PermanentStatusCodes []int
	// Rand feeds jitter; nil uses math/rand
	Rand func() float64
}

// DefaultPolicy returns the policy used against the shared streams service
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:           3,
		BaseDelay:            500 * time.Millisecond,
		MaxDelay:             10 * time.Second,
		Strategy:             StrategyExponentialWithJitter,
		RetryableStatusCodes: []int{408, 425, 429, 500, 502, 503, 504},
		PermanentStatusCodes: []int{401, 403, 404, 410},
	}
}

// PolicyFromConfig builds a Policy from the retry section of the configuration
func PolicyFromConfig(cfg config.RetryConfig) (Policy, error) {
	strategy, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return Policy{}, err
	}
	p := Policy{
		MaxRetries:           cfg.MaxRetries,
		BaseDelay:            cfg.BaseDelay,
		MaxDelay:             cfg.MaxDelay,
		Strategy:             strategy,
		RetryableStatusCodes: append([]int(nil), cfg.RetryableStatusCodes...),
		PermanentStatusCodes: append([]int(nil), cfg.PermanentStatusCodes...),
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid retry policy: %w", err)
	}
	return p, nil
}

// Validate reports policy values that break the executor's invariants
func (p Policy) Validate() error {
	var problems []error
	if p.MaxRetries < 0 {
		problems = append(problems, errors.New("max retries cannot be negative"))
	}
	if p.BaseDelay < 0 {
		problems = append(problems, errors.New("base delay cannot be negative"))
	}
	if p.MaxDelay < p.BaseDelay {
		problems = append(problems, errors.New("max delay must be at least the base delay"))
	}
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		problems = append(problems, err)
	}
	return errors.Join(problems...)
}

// Backoff returns the BackoffStrategy for the policy's Strategy
func (p Policy) Backoff() BackoffStrategy {
	switch p.Strategy {
	case StrategyConstant:
		return &ConstantBackoff{Delay: p.BaseDelay, MaxDelay: p.MaxDelay}
	case StrategyLinear:
		return &LinearBackoff{BaseDelay: p.BaseDelay, MaxDelay: p.MaxDelay}
	case StrategyExponentialWithJitter:
		return &ExponentialBackoff{BaseDelay: p.BaseDelay, MaxDelay: p.MaxDelay, Jitter: true, Rand: p.Rand}
	default:
		return &ExponentialBackoff{BaseDelay: p.BaseDelay, MaxDelay: p.MaxDelay}
	}
}

// Delay is the wait after the given number of completed attempts.
// It is always within [0, MaxDelay].
func (p Policy) Delay(attempt int) time.Duration {
	return p.Backoff().NextDelay(attempt)
}

// Classify applies the default error table: transport failures and retryable
// statuses are retried, permanent statuses and decode/schema failures are not.
func (p Policy) Classify(err error) Action {
	if err == nil {
		return ActionFail
	}
	var (
		transport *errs.TransportError
		status    *errs.StatusError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return ActionFail
	case errors.As(err, &transport):
		return ActionRetry
	case errors.As(err, &status):
		if containsCode(p.PermanentStatusCodes, status.Code) {
			return ActionFail
		}
		if containsCode(p.RetryableStatusCodes, status.Code) || status.Code >= 500 {
			return ActionRetry
		}
		return ActionFail
	default:
		return ActionFail
	}
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// Stats records what happened during one Do call
type Stats struct {
	Attempts   int
	TotalDelay time.Duration
	Succeeded  bool
	Degraded   bool
	LastError  string
}

// Config holds the per-call settings for Do
type Config struct {
	Policy Policy
	// Classify overrides Policy.Classify
	Classify Classifier
	// Name identifies the operation in log lines
	Name string
	// OnRetry is called before each sleep
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep waits between attempts; nil uses Wait
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger logger.Logger
}

// Do runs op up to Policy.MaxRetries+1 times. Errors classified as ActionFail
// are returned unchanged; running out of attempts yields a RetryExhaustedError.
func Do[T any](ctx context.Context, cfg Config, op Operation[T]) (T, Stats, error) {
	var (
		zero  T
		stats Stats
	)

	classify := cfg.Classify
	if classify == nil {
		classify = cfg.Policy.Classify
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Wait
	}
	maxAttempts := cfg.Policy.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		stats.Attempts = attempt

		result, err := op(ctx)
		if err == nil {
			stats.Succeeded = true
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"operation": cfg.Name,
					"attempt":   attempt,
				})
			}
			return result, stats, nil
		}

		lastErr = err
		stats.LastError = err.Error()

		switch classify(err) {
		case ActionDegrade:
			stats.Succeeded = true
			stats.Degraded = true
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("operation degraded to empty result", map[string]interface{}{
					"operation": cfg.Name,
					"attempt":   attempt,
					"error":     err.Error(),
				})
			}
			return zero, stats, nil
		case ActionFail:
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"operation":  cfg.Name,
					"attempt":    attempt,
					"error":      err.Error(),
					"error_type": string(errs.TypeOf(err)),
				})
			}
			return zero, stats, err
		}

		if attempt == maxAttempts {
			break
		}

		delay := cfg.Policy.Delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"operation":    cfg.Name,
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": maxAttempts,
			})
		}

		if err := sleep(ctx, delay); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("retry cancelled", map[string]interface{}{
					"operation": cfg.Name,
					"attempt":   attempt,
					"reason":    err.Error(),
				})
			}
			return zero, stats, fmt.Errorf("retry cancelled: %w", err)
		}
		stats.TotalDelay += delay
	}

	if cfg.Logger != nil {
		cfg.Logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
			"operation":  cfg.Name,
			"attempts":   stats.Attempts,
			"last_error": lastErr.Error(),
		})
	}
	return zero, stats, &errs.RetryExhaustedError{Attempts: stats.Attempts, Last: lastErr}
}
