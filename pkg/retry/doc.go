// Package retry re-runs a whole operation, such as one sync of an account,
// with backoff between attempts.
//
// The fetch engine itself never retries: a failed page ends the sync without
// writing the cache, so re-running the sync from the start is always safe.
//
//	cfg := retry.FromConfig(appConfig.Retry, log)
//	result, err := retry.DoWithResult(ctx, func(ctx context.Context) (*commentsync.Result, error) {
//		return engine.GetComments(ctx, req)
//	}, cfg)
//
// Which errors are retried is decided by DefaultRetryIf:
//   - transport failures, quota exhaustion, 429 and 5xx: retried
//   - malformed responses, other 4xx, cache errors, cancellation: returned at once
//
// FromConfig installs a ServerHinted backoff: a Retry-After header or a quota
// reset time decides the pause, and a pause longer than retry.max_wait fails
// the operation instead.
package retry
