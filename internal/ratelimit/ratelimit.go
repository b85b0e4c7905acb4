package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/log"
	"github.com/looplj/tzcore/internal/pipeline"
)

// Limiter implements pipeline.RateLimiter over a shared Store plus one
// ExhaustionBackoff per pool. A request needs a permit from every named
// pool passed to Admit (variant, model, global, plus any caller-defined
// pool id), matching spec §4.9's "requires a permit from every pool that
// applies to it".
type Limiter struct {
	store Store
	cfg   Config
	epoch time.Time

	mu       sync.Mutex
	backoffs map[string]*ExhaustionBackoff
}

var _ pipeline.RateLimiter = (*Limiter)(nil)

func New(store Store, cfg Config) *Limiter {
	return &Limiter{
		store:    store,
		cfg:      cfg,
		epoch:    time.Now(),
		backoffs: make(map[string]*ExhaustionBackoff),
	}
}

func (l *Limiter) backoffFor(poolID string) *ExhaustionBackoff {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.backoffs[poolID]
	if !ok {
		b = newExhaustionBackoff(l.epoch)
		l.backoffs[poolID] = b
	}

	return b
}

// Admit requires a permit from every named pool. It never blocks waiting
// for capacity to return: a pool either has a permit available now or the
// call fails with a RateLimited error naming the pool and the wait_ms a
// caller could retry after, per spec §4.9. The pipeline's own variant
// retry loop is what turns that failure into a fallback attempt.
func (l *Limiter) Admit(ctx context.Context, pools []string) error {
	for _, name := range pools {
		if err := l.admitOne(ctx, name); err != nil {
			return err
		}
	}

	return nil
}

func (l *Limiter) admitOne(ctx context.Context, name string) error {
	cfg, limited := l.cfg.poolConfig(name)
	if !limited {
		return nil
	}

	backoff := l.backoffFor(name)
	now := time.Now()

	if wait, rejecting := backoff.inBackoff(now); rejecting {
		return rateLimitedError(name, wait)
	}

	if err := ctx.Err(); err != nil {
		return errkit.Wrap(errkit.RateLimited, err, fmt.Sprintf("pool %q: request deadline already expired", name)).WithLocation(name)
	}

	ok, err := l.store.TryAcquire(ctx, name, cfg)
	if err != nil {
		// A shared-store outage must not take the whole gateway down with
		// it; fail open and let the provider call itself enforce limits.
		log.Warn(ctx, "rate limit store unavailable, admitting request", log.String("pool", name), log.Cause(err))

		return nil
	}

	if ok {
		backoff.recordSuccess()
		return nil
	}

	wait := backoff.recordExhaustion(now)

	return rateLimitedError(name, wait)
}

func rateLimitedError(pool string, wait time.Duration) error {
	waitMS := wait.Milliseconds()

	return errkit.New(errkit.RateLimited, fmt.Sprintf("pool %q exhausted, retry after %dms", pool, waitMS)).WithLocation(pool)
}
