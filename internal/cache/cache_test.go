package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/pipeline"
	"github.com/looplj/tzcore/internal/providers"
)

func TestMemoryCacheStoreThenLookupHits(t *testing.T) {
	c, err := NewFromConfig(Config{Mode: ModeMemory, Memory: MemoryConfig{Expiration: time.Minute, CleanupInterval: time.Minute}})
	require.NoError(t, err)

	entry := pipeline.CacheEntry{
		Content:      []providers.ContentBlock{{Kind: providers.ContentText, Text: "hi"}},
		FinishReason: providers.FinishStop,
		Usage:        providers.Usage{InputTokens: 1, OutputTokens: 2},
	}

	require.NoError(t, c.Store(context.Background(), "fp1", entry))

	got, hit, err := c.Lookup(context.Background(), "fp1", 0)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "hi", got.Content[0].Text)
	assert.Equal(t, int64(1), got.Usage.InputTokens)
}

func TestMemoryCacheLookupMissForUnknownFingerprint(t *testing.T) {
	c, err := NewFromConfig(Config{Mode: ModeMemory})
	require.NoError(t, err)

	_, hit, err := c.Lookup(context.Background(), "missing", 0)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryCacheLookbackExpiresOldEntry(t *testing.T) {
	c, err := NewFromConfig(Config{Mode: ModeMemory, Memory: MemoryConfig{Expiration: time.Hour, CleanupInterval: time.Hour}})
	require.NoError(t, err)

	fc := c.(*FingerprintCache)
	require.NoError(t, fc.backing.Set(context.Background(), "fp-old", storedEntry{StoredAt: time.Now().Add(-time.Hour)}))

	_, hit, err := c.Lookup(context.Background(), "fp-old", 0) // no lookback bound: stale entry still hits
	require.NoError(t, err)
	assert.True(t, hit)

	_, hit, err = c.Lookup(context.Background(), "fp-old", 60) // 60s lookback: an hour-old entry is stale
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	c := NewNoop()

	require.NoError(t, c.Store(context.Background(), "fp", pipeline.CacheEntry{}))

	_, hit, err := c.Lookup(context.Background(), "fp", 0)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNewFromConfigDefaultsToNoop(t *testing.T) {
	c, err := NewFromConfig(Config{})
	require.NoError(t, err)

	_, ok := c.(noopCache)
	assert.True(t, ok)
}

func TestRedisModeWithoutConfigErrors(t *testing.T) {
	_, err := NewFromConfig(Config{Mode: ModeRedis})
	require.Error(t, err)
}
