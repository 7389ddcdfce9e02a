// Package retry runs idempotent operations against the shared streams service
// with error classification and configurable backoff.
//
// Features:
//   - Constant, linear, exponential and jittered exponential backoff
//   - Delay computation is pure and always within [0, MaxDelay]
//   - Permanent status codes take precedence over retryable ones
//   - A classifier may turn an error into a degraded success
//   - Per-call Stats (attempts, cumulative delay, outcome, last error)
//
// Basic usage:
//
//	policy := retry.DefaultPolicy()
//	body, stats, err := retry.Do(ctx, retry.Config{
//		Policy: policy,
//		Name:   "webstream",
//		Logger: logger.GetLogger(),
//	}, func(ctx context.Context) ([]byte, error) {
//		return client.post(ctx, url, payload)
//	})
//
// Error handling:
//
// Transport failures, status codes listed as retryable and any 5xx are retried.
// Status codes listed as permanent, decode failures and schema failures are
// returned as-is on the first occurrence. When every attempt fails Do returns
// an *errors.RetryExhaustedError wrapping the last error.
package retry
