// Package ratelimit paces asset downloads so a large album does not flood
// the content hosts.
//
// Two implementations satisfy Limiter:
//
// Token Bucket:
//   - Fixed capacity bucket that refills completely after each period
//   - Allows bursts followed by quiet periods
//
// Sliding Window:
//   - At most N requests in any window of the given size
//   - Used by the download pool through PerMinute
//
// Wait takes a context so a cancelled download run stops waiting at once:
//
//	limiter := ratelimit.PerMinute(cfg.Download.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
