package store

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Client is the analytical-store handle shared across the gateway (spec
// §5 "Analytical store client: shared handle; the store performs its own
// connection multiplexing"). It exposes only the operations the core
// actually issues: insert(table, row_or_batch) and
// run_query_synchronous(query, params).
type Client struct {
	conn     chdriver.Conn
	database string
}

func New(cfg Config) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug:        cfg.Debug,
		DialTimeout:  cfg.dialTimeout(),
		MaxOpenConns: cfg.maxOpenConns(),
		MaxIdleConns: cfg.maxIdleConns(),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open clickhouse connection: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("store: ping clickhouse: %w", err)
	}

	return &Client{conn: conn, database: cfg.Database}, nil
}

// Database returns the configured database name, used by the migration
// manager to scope system.tables/system.columns lookups.
func (c *Client) Database() string {
	return c.database
}

// Insert appends a single row to table. Row must be a struct whose fields
// carry `ch:"..."` tags matching the destination table's columns (see
// internal/store/rows).
func (c *Client) Insert(ctx context.Context, table string, row any) error {
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("store: prepare batch for %s: %w", table, err)
	}

	if err := batch.AppendStruct(row); err != nil {
		return fmt.Errorf("store: append row to %s: %w", table, err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("store: send batch to %s: %w", table, err)
	}

	return nil
}

// InsertBatch appends every row in rows to table as a single batch.
func (c *Client) InsertBatch(ctx context.Context, table string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("store: prepare batch for %s: %w", table, err)
	}

	for i, row := range rows {
		if err := batch.AppendStruct(row); err != nil {
			return fmt.Errorf("store: append row %d to %s: %w", i, table, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("store: send batch to %s: %w", table, err)
	}

	return nil
}

// RunQuerySynchronous runs query with named parameters substituted
// server-side — never via string interpolation, per spec §4.10 — and
// scans the results into dest (a pointer to a slice of row structs).
func (c *Client) RunQuerySynchronous(ctx context.Context, dest any, query string, params map[string]any) error {
	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, clickhouse.Named(name, value))
	}

	if err := c.conn.Select(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("store: run query: %w", err)
	}

	return nil
}

// Exec runs a DDL or parameterless mutation (used by the migration
// manager).
func (c *Client) Exec(ctx context.Context, query string, params map[string]any) error {
	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, clickhouse.Named(name, value))
	}

	if err := c.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("store: exec: %w", err)
	}

	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
