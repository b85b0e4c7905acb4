package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// MemoryStore is a single-process Store, used for standalone deployments
// and tests where a shared Redis isn't worth standing up. It is backed by
// golang.org/x/time/rate rather than reimplementing token-bucket math a
// second time in Go.
type MemoryStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{limiters: make(map[string]*rate.Limiter)}
}

func (s *MemoryStore) TryAcquire(_ context.Context, poolID string, cfg PoolConfig) (bool, error) {
	s.mu.Lock()
	limiter, ok := s.limiters[poolID]

	if !ok {
		limiter = rate.NewLimiter(rate.Limit(cfg.RefillPerSecond), int(cfg.Capacity))
		s.limiters[poolID] = limiter
	}

	s.mu.Unlock()

	return limiter.Allow(), nil
}
