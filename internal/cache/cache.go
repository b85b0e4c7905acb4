// Package cache implements the write-through inference cache (spec §4.8)
// on top of github.com/eko/gocache/lib/v4, generalizing the teacher's
// internal/pkg/xcache memory/redis/two-level construction to the
// gateway's fingerprint→CacheEntry shape instead of xcache's generic
// Cache[T].
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"

	redis_store "github.com/looplj/tzcore/internal/cache/redis"
	"github.com/looplj/tzcore/internal/log"
	"github.com/looplj/tzcore/internal/pipeline"
)

// storedEntry is the JSON-serializable envelope persisted under each
// fingerprint key; StoredAt backs the read-time TTL check spec §4.8
// requires independent of whatever physical expiration the backing store
// enforces ("TTL is enforced by checking the entry timestamp at read
// time").
type storedEntry struct {
	Entry    pipeline.CacheEntry
	StoredAt time.Time
}

// FingerprintCache implements pipeline.Cache over a gocache
// CacheInterface keyed by the fingerprint string.
type FingerprintCache struct {
	backing cachelib.CacheInterface[storedEntry]
}

var _ pipeline.Cache = (*FingerprintCache)(nil)

// Lookup treats any backing error (including not-found) as a miss rather
// than a propagated error, mirroring the teacher's own cache call sites
// (`if channelID, err := s.channelCache.Get(ctx, cacheKey); err == nil {
// ... }`) — a cold or unreachable cache should never fail the request.
func (c *FingerprintCache) Lookup(ctx context.Context, fingerprint string, lookbackSeconds int64) (*pipeline.CacheEntry, bool, error) {
	val, err := c.backing.Get(ctx, fingerprint)
	if err != nil {
		return nil, false, nil
	}

	if lookbackSeconds > 0 && time.Since(val.StoredAt) > time.Duration(lookbackSeconds)*time.Second {
		return nil, false, nil
	}

	entry := val.Entry

	return &entry, true, nil
}

func (c *FingerprintCache) Store(ctx context.Context, fingerprint string, entry pipeline.CacheEntry) error {
	return c.backing.Set(ctx, fingerprint, storedEntry{Entry: entry, StoredAt: time.Now()})
}

// noopCache always misses and never stores, used when caching is disabled
// (spec §4.8 is then simply not consulted).
type noopCache struct{}

var _ pipeline.Cache = noopCache{}

func (noopCache) Lookup(context.Context, string, int64) (*pipeline.CacheEntry, bool, error) {
	return nil, false, nil
}

func (noopCache) Store(context.Context, string, pipeline.CacheEntry) error { return nil }

// NewNoop returns a cache that never hits and never stores.
func NewNoop() pipeline.Cache { return noopCache{} }

// NewFromConfig builds the configured cache backing. An empty/unknown
// Mode returns NewNoop().
func NewFromConfig(cfg Config) (pipeline.Cache, error) {
	if cfg.Mode == "" {
		return NewNoop(), nil
	}

	memExpiration := defaultIfZero(cfg.Memory.Expiration, 5*time.Minute)
	memCleanupInterval := defaultIfZero(cfg.Memory.CleanupInterval, 10*time.Minute)

	memClient := gocache.New(memExpiration, memCleanupInterval)
	memStore := gocache_store.NewGoCache(memClient, store.WithExpiration(memExpiration))
	mem := cachelib.New[storedEntry](memStore)

	var rds cachelib.SetterCacheInterface[storedEntry]

	if (cfg.Redis.Addr != "" || cfg.Redis.URL != "") && cfg.Mode != ModeMemory {
		opts, err := newRedisOptions(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("invalid redis config: %w", err)
		}

		client := goredis.NewClient(opts)

		redisExpiration := defaultIfZero(cfg.Redis.Expiration, 30*time.Minute)
		rdsStore := redis_store.NewStore[storedEntry](client, store.WithExpiration(redisExpiration))
		rds = cachelib.New[storedEntry](rdsStore)
	}

	switch cfg.Mode {
	case ModeTwoLevel:
		if rds == nil {
			return nil, errors.New("two_level cache mode requires redis configuration")
		}

		log.Info(context.Background(), "using two-level inference cache")

		return &FingerprintCache{backing: cachelib.NewChain[storedEntry](mem, rds)}, nil

	case ModeRedis:
		if rds == nil {
			return nil, errors.New("redis cache mode requires redis configuration")
		}

		log.Info(context.Background(), "using redis inference cache")

		return &FingerprintCache{backing: rds}, nil

	case ModeMemory:
		log.Info(context.Background(), "using in-memory inference cache")
		return &FingerprintCache{backing: mem}, nil

	default:
		log.Info(context.Background(), "inference cache disabled")
		return NewNoop(), nil
	}
}

func defaultIfZero(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}

	return d
}

func newRedisOptions(cfg RedisConfig) (*goredis.Options, error) {
	opts := &goredis.Options{}

	switch {
	case cfg.URL != "":
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}

		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return nil, fmt.Errorf("unsupported redis scheme: %s", u.Scheme)
		}

		if u.Host == "" {
			return nil, errors.New("redis url missing host")
		}

		opts.Addr = u.Host

		if u.User != nil {
			opts.Username = u.User.Username()
			if pwd, ok := u.User.Password(); ok {
				opts.Password = pwd
			}
		}

		if path := strings.TrimPrefix(u.Path, "/"); path != "" {
			db, err := strconv.Atoi(path)
			if err != nil {
				return nil, fmt.Errorf("invalid redis db in url: %w", err)
			}

			opts.DB = db
		}

	case cfg.Addr != "":
		opts.Addr = strings.TrimSpace(cfg.Addr)

	default:
		return nil, errors.New("redis addr or url is required")
	}

	if cfg.Username != "" {
		opts.Username = cfg.Username
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	return opts, nil
}
