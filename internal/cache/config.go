package cache

import "time"

// Mode selects which backing store NewFromConfig builds (spec §4.8).
type Mode string

const (
	ModeMemory   Mode = "memory"
	ModeRedis    Mode = "redis"
	ModeTwoLevel Mode = "two_level"
)

// MemoryConfig configures the patrickmn/go-cache-backed memory tier.
type MemoryConfig struct {
	Expiration      time.Duration
	CleanupInterval time.Duration
}

// RedisConfig configures the go-redis-backed tier. Either Addr or URL must
// be set when Mode is ModeRedis or ModeTwoLevel.
type RedisConfig struct {
	Addr     string
	URL      string
	Username string
	Password string
	DB       int

	TLS                   bool
	TLSInsecureSkipVerify bool

	Expiration time.Duration
}

// Config selects and configures the cache backing NewFromConfig builds.
type Config struct {
	Mode   Mode
	Memory MemoryConfig
	Redis  RedisConfig
}
