package ratelimit

import (
	"sync/atomic"
	"time"
)

const (
	initialBackoff = 10 * time.Millisecond
	maxBackoff     = 1000 * time.Millisecond
)

// ExhaustionBackoff is the per-pool, per-process state spec §5 singles out
// as the rate limiter's only shared mutable state: "rejectUntilNanos"
// (acquire/release) and "backoffNanos" (relaxed), both atomics, timed
// against a monotonic instant sampled once at construction. No mutex
// guards either field, matching the teacher's probingInProgress/NextProbeAt
// pair in internal/server/biz/model_circuit_breaker.go, narrowed here from
// RWMutex-guarded fields to lock-free atomics since this state never needs
// to be read and written as one atomic unit.
type ExhaustionBackoff struct {
	epoch            time.Time
	rejectUntilNanos atomic.Int64
	backoffNanos     atomic.Int64
}

func newExhaustionBackoff(epoch time.Time) *ExhaustionBackoff {
	b := &ExhaustionBackoff{epoch: epoch}
	b.backoffNanos.Store(int64(initialBackoff))

	return b
}

// inBackoff reports whether the pool is currently rejecting without a
// store round trip, and if so, how much longer.
func (b *ExhaustionBackoff) inBackoff(now time.Time) (time.Duration, bool) {
	rejectUntil := b.rejectUntilNanos.Load()
	elapsed := now.Sub(b.epoch).Nanoseconds()

	if elapsed >= rejectUntil {
		return 0, false
	}

	return time.Duration(rejectUntil - elapsed), true
}

// recordExhaustion sets reject-until to now+interval using the current
// backoff interval (initialBackoff on the first exhaustion), then doubles
// the stored interval (capped at maxBackoff) for the next consecutive
// exhaustion, and returns the interval used.
func (b *ExhaustionBackoff) recordExhaustion(now time.Time) time.Duration {
	cur := time.Duration(b.backoffNanos.Load())

	next := cur * 2
	if next > maxBackoff {
		next = maxBackoff
	}

	b.backoffNanos.Store(int64(next))

	elapsed := now.Sub(b.epoch)
	b.rejectUntilNanos.Store(int64(elapsed + cur))

	return cur
}

// recordSuccess resets the backoff to its initial interval and clears the
// reject-until timestamp, per spec §4.9: "Any success resets the backoff
// to initial and clears the reject-until timestamp."
func (b *ExhaustionBackoff) recordSuccess() {
	b.backoffNanos.Store(int64(initialBackoff))
	b.rejectUntilNanos.Store(0)
}
