// Package migrations holds the concrete forward-only schema migrations
// applied to the analytical store, grounded on the original system's
// migration_0000/0005/0006/0007/0027/0034.rs files.
package migrations

import (
	"context"
	"strings"

	"github.com/looplj/tzcore/internal/store"
)

type existsRow struct {
	Exists uint8 `ch:"e"`
}

// tableExists mirrors the original migration_manager's check_table_exists:
// a literal lookup against system.tables, sent as a named parameter rather
// than interpolated into the query string.
func tableExists(ctx context.Context, client *store.Client, table string) (bool, error) {
	var rows []existsRow

	err := client.RunQuerySynchronous(ctx, &rows,
		`SELECT 1 AS e FROM system.tables WHERE database = {database:String} AND name = {table:String}`,
		map[string]any{"database": client.Database(), "table": table},
	)
	if err != nil {
		return false, err
	}

	return len(rows) > 0, nil
}

// indexExists mirrors check_index_exists: a lookup against
// system.data_skipping_indices for a named bloom-filter (or other) index.
func indexExists(ctx context.Context, client *store.Client, table, index string) (bool, error) {
	var rows []existsRow

	err := client.RunQuerySynchronous(ctx, &rows,
		`SELECT 1 AS e FROM system.data_skipping_indices WHERE database = {database:String} AND table = {table:String} AND name = {index:String}`,
		map[string]any{"database": client.Database(), "table": table, "index": index},
	)
	if err != nil {
		return false, err
	}

	return len(rows) > 0, nil
}

// columnExists mirrors the column-presence check migration_0005.rs runs
// against system.columns before deciding whether the tags column already
// landed on a table.
func columnExists(ctx context.Context, client *store.Client, table, column string) (bool, error) {
	var rows []existsRow

	err := client.RunQuerySynchronous(ctx, &rows,
		`SELECT 1 AS e FROM system.columns WHERE database = {database:String} AND table = {table:String} AND name = {column:String}`,
		map[string]any{"database": client.Database(), "table": table, "column": column},
	)
	if err != nil {
		return false, err
	}

	return len(rows) > 0, nil
}

// columnType mirrors get_column_type: reads a column's declared type out of
// system.columns so a migration can tell whether a prior run already
// widened/narrowed it.
func columnType(ctx context.Context, client *store.Client, table, column string) (string, error) {
	var rows []struct {
		Type string `ch:"type"`
	}

	err := client.RunQuerySynchronous(ctx, &rows,
		`SELECT type FROM system.columns WHERE database = {database:String} AND table = {table:String} AND name = {column:String}`,
		map[string]any{"database": client.Database(), "table": table, "column": column},
	)
	if err != nil {
		return "", err
	}

	if len(rows) == 0 {
		return "", nil
	}

	return rows[0].Type, nil
}

// viewDefinitionContains mirrors migration_0034.rs's concurrent-migration
// detection: after creating a materialized view with a cutover timestamp
// baked into its WHERE clause, re-read the view's own definition and check
// the timestamp is still the one this run picked. If it isn't, some other
// process created the view first and this run must not double-backfill.
func viewDefinitionContains(ctx context.Context, client *store.Client, view, needle string) (bool, error) {
	var rows []struct {
		Statement string `ch:"statement"`
	}

	err := client.RunQuerySynchronous(ctx, &rows,
		`SHOW CREATE TABLE `+view, nil,
	)
	if err != nil {
		return false, err
	}

	for _, r := range rows {
		if strings.Contains(r.Statement, needle) {
			return true, nil
		}
	}

	return false, nil
}
