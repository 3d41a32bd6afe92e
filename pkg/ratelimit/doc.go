// Package ratelimit covers both sides of the API's request budget.
//
// QuotaGuard reads the X-RateLimit-* headers on every response and reports a
// QuotaWarning once the user or client bucket is within the margin of running
// out. Warnings are advisory: the fetcher logs them and hands them to the
// caller, who decides whether to stop.
//
// Client-side pacing is optional and implemented by two Limiters:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Suitable for short bursts followed by quiet periods
//   - Default strategy
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - Smoother pacing for long syncs
//
// Usage:
//
//	guard := ratelimit.NewQuotaGuard(ratelimit.DefaultQuotaMargin)
//	if w := guard.Inspect(resp.Header); w != nil {
//	    log.Warn(w.Error())
//	}
//
//	limiter := ratelimit.NewLimiter(cfg.RateLimit)
//	if limiter != nil {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	}
package ratelimit
