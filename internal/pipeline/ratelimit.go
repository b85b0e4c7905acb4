package pipeline

import "context"

// RateLimiter admits a request against every named pool that applies to
// it (spec §4.9: variant, model, global, plus any user-defined pool).
// Admit returns an *errkit.Error of Kind RateLimited (naming the pool
// that rejected, via Location) on exhaustion; the pipeline treats that as
// an ordinary variant failure.
type RateLimiter interface {
	Admit(ctx context.Context, pools []string) error
}
