package pipeline

import (
	"context"

	"github.com/looplj/tzcore/internal/providers"
)

// CacheEntry is the subset of an InferenceOutput worth replaying on a
// cache hit (spec §4.8). Usage is kept separately from raw_usage
// accounting so a hit can still report total token counts to the caller
// without double-counting cost downstream.
type CacheEntry struct {
	Content      []providers.ContentBlock
	FinishReason providers.FinishReason
	Usage        providers.Usage
	RawRequest   []byte
	RawResponse  []byte
}

// Cache is the write-through cache contract (spec §4.8). Implementations
// live in internal/cache; this interface keeps the pipeline decoupled
// from the backing store (memory, Redis, two-level).
type Cache interface {
	// Lookup returns the entry for fingerprint if one exists and is no
	// older than lookbackSeconds (0 means no lookback bound).
	Lookup(ctx context.Context, fingerprint string, lookbackSeconds int64) (*CacheEntry, bool, error)

	Store(ctx context.Context, fingerprint string, entry CacheEntry) error
}
