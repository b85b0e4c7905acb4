package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/errkit"
)

// fakeStore lets tests script TryAcquire results per pool without a real
// Redis instance.
type fakeStore struct {
	mu      sync.Mutex
	results map[string][]bool // consumed in order; last value repeats once exhausted
	calls   map[string]int
}

func newFakeStore(results map[string][]bool) *fakeStore {
	return &fakeStore{results: results, calls: make(map[string]int)}
}

func (s *fakeStore) TryAcquire(_ context.Context, poolID string, _ PoolConfig) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[poolID]++

	seq := s.results[poolID]
	if len(seq) == 0 {
		return true, nil
	}

	idx := s.calls[poolID] - 1
	if idx >= len(seq) {
		idx = len(seq) - 1
	}

	return seq[idx], nil
}

func (s *fakeStore) callCount(poolID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[poolID]
}

func testConfig() Config {
	return Config{Default: &PoolConfig{Capacity: 1, RefillPerSecond: 1}}
}

func TestAdmitSucceedsWhenStoreHasCapacity(t *testing.T) {
	store := newFakeStore(map[string][]bool{"global": {true}})
	l := New(store, testConfig())

	err := l.Admit(context.Background(), []string{"global"})
	require.NoError(t, err)
}

func TestAdmitFailsWithRateLimitedKindOnExhaustion(t *testing.T) {
	store := newFakeStore(map[string][]bool{"global": {false}})
	l := New(store, testConfig())

	err := l.Admit(context.Background(), []string{"global"})
	require.Error(t, err)
	assert.Equal(t, errkit.RateLimited, errkit.KindOf(err))
}

func TestAdmitRequiresEveryNamedPool(t *testing.T) {
	store := newFakeStore(map[string][]bool{
		"variant:v1": {true},
		"model:m1":   {false},
	})
	l := New(store, testConfig())

	err := l.Admit(context.Background(), []string{"variant:v1", "model:m1"})
	require.Error(t, err)
	assert.Equal(t, 1, store.callCount("variant:v1"))
	assert.Equal(t, 1, store.callCount("model:m1"))
}

func TestLocalBackoffSkipsStoreRoundTripUntilIntervalElapses(t *testing.T) {
	store := newFakeStore(map[string][]bool{"global": {false, true}})
	l := New(store, testConfig())

	err := l.Admit(context.Background(), []string{"global"})
	require.Error(t, err)
	assert.Equal(t, 1, store.callCount("global"))

	// Immediately retrying should be rejected locally without a second
	// store round trip, since the 10ms backoff hasn't elapsed yet.
	err = l.Admit(context.Background(), []string{"global"})
	require.Error(t, err)
	assert.Equal(t, errkit.RateLimited, errkit.KindOf(err))
	assert.Equal(t, 1, store.callCount("global"))

	time.Sleep(2 * initialBackoff)

	err = l.Admit(context.Background(), []string{"global"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.callCount("global"))
}

func TestExhaustionBackoffDoublesAndCapsAtMax(t *testing.T) {
	b := newExhaustionBackoff(time.Now())

	now := time.Now()
	got := b.recordExhaustion(now)
	assert.Equal(t, initialBackoff, got)

	got = b.recordExhaustion(now)
	assert.Equal(t, 2*initialBackoff, got)

	for i := 0; i < 10; i++ {
		got = b.recordExhaustion(now)
	}

	assert.Equal(t, maxBackoff, got)
}

func TestExhaustionBackoffResetsOnSuccess(t *testing.T) {
	b := newExhaustionBackoff(time.Now())

	b.recordExhaustion(time.Now())
	b.recordExhaustion(time.Now())
	b.recordSuccess()

	_, rejecting := b.inBackoff(time.Now())
	assert.False(t, rejecting)
	assert.Equal(t, int64(initialBackoff), b.backoffNanos.Load())
}

func TestAdmitUnconfiguredPoolIsUnlimited(t *testing.T) {
	store := newFakeStore(nil)
	l := New(store, Config{})

	err := l.Admit(context.Background(), []string{"anything"})
	require.NoError(t, err)
	assert.Equal(t, 0, store.callCount("anything"))
}

func TestAdmitFailsFastOnExpiredContext(t *testing.T) {
	store := newFakeStore(map[string][]bool{"global": {true}})
	l := New(store, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Admit(ctx, []string{"global"})
	require.Error(t, err)
	assert.Equal(t, errkit.RateLimited, errkit.KindOf(err))
	assert.Equal(t, 0, store.callCount("global"))
}

func TestMemoryStoreEnforcesCapacity(t *testing.T) {
	store := NewMemoryStore()
	cfg := PoolConfig{Capacity: 1, RefillPerSecond: 0.001}

	ok, err := store.TryAcquire(context.Background(), "pool", cfg)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TryAcquire(context.Background(), "pool", cfg)
	require.NoError(t, err)
	assert.False(t, ok)
}
