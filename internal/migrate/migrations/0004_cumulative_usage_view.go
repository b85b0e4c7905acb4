package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/looplj/tzcore/internal/log"
	"github.com/looplj/tzcore/internal/migrate"
	"github.com/looplj/tzcore/internal/store"
	"github.com/looplj/tzcore/internal/store/rows"
)

// CumulativeUsageView creates the CumulativeUsage SummingMergeTree table
// and the materialized view that amortizes ModelInference's token counts
// into it (spec §4.8's running-total store). Grounded on migration_0034.rs.
//
// Like TagInference's by-id lookup tables, this uses a cutover timestamp:
// the view only covers rows at or after T, and a one-time backfill covers
// everything before T. Unlike that migration, the backfill here is a
// server-side aggregation (SUM/COUNT) rather than a row-for-row copy, so
// after creating the view this migration re-reads the view's own DDL to
// confirm the cutover timestamp it wrote is still the one in place —
// if another process's migration run created the view first, this run's
// backfill would double-count and must be skipped.
type CumulativeUsageView struct {
	Client *store.Client

	// CutoverDelay defaults to 15s, matching the original view_offset.
	CutoverDelay time.Duration
}

var _ migrate.Migration = (*CumulativeUsageView)(nil)

func (m *CumulativeUsageView) Name() string { return "0004_cumulative_usage_view" }

func (m *CumulativeUsageView) CanApply(ctx context.Context) error {
	exists, err := tableExists(ctx, m.Client, "ModelInference")
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("table ModelInference does not exist")
	}

	return nil
}

func (m *CumulativeUsageView) ShouldApply(ctx context.Context) (bool, error) {
	for _, table := range []string{"CumulativeUsage", "CumulativeUsageView"} {
		exists, err := tableExists(ctx, m.Client, table)
		if err != nil {
			return false, err
		}

		if !exists {
			return true, nil
		}
	}

	return false, nil
}

func (m *CumulativeUsageView) cutoverDelay() time.Duration {
	if m.CutoverDelay > 0 {
		return m.CutoverDelay
	}

	return 15 * time.Second
}

func (m *CumulativeUsageView) Apply(ctx context.Context, cleanStart bool) error {
	if err := m.Client.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS CumulativeUsage
		(
			type LowCardinality(String),
			count UInt64
		)
		ENGINE = SummingMergeTree
		ORDER BY type`, nil); err != nil {
		return err
	}

	cutover := time.Now().Add(m.cutoverDelay())
	cutoverNanos := cutover.UnixNano()

	whereClause := ""
	if !cleanStart {
		whereClause = fmt.Sprintf("AND UUIDv7ToDateTime(id) >= fromUnixTimestamp64Nano(%d)", cutoverNanos)
	}

	viewQuery := fmt.Sprintf(`
		CREATE MATERIALIZED VIEW IF NOT EXISTS CumulativeUsageView
		TO CumulativeUsage
		AS
		SELECT
			tupleElement(t, 1) AS type,
			tupleElement(t, 2) AS count
		FROM (
			SELECT
				arrayJoin([
					tuple('input_tokens', input_tokens),
					tuple('output_tokens', output_tokens),
					tuple('model_inferences', 1)
				]) AS t
			FROM ModelInference
			WHERE input_tokens IS NOT NULL
			%s
		)`, whereClause)

	if err := m.Client.Exec(ctx, viewQuery, nil); err != nil {
		return err
	}

	if cleanStart {
		return nil
	}

	time.Sleep(time.Until(cutover))

	written, err := viewDefinitionContains(ctx, m.Client, "CumulativeUsageView", fmt.Sprintf("%d", cutoverNanos))
	if err != nil {
		return err
	}

	if !written {
		log.Warn(ctx, "CumulativeUsageView was not written with this run's cutover timestamp, skipping backfill (likely a concurrent migration)")
		return nil
	}

	log.Info(ctx, "running CumulativeUsage backfill")

	type backfillCount struct {
		TotalInputTokens  uint64 `ch:"total_input_tokens"`
		TotalOutputTokens uint64 `ch:"total_output_tokens"`
		TotalCount        uint64 `ch:"total_count"`
	}

	var counts []backfillCount

	countQuery := fmt.Sprintf(`
		SELECT
			sum(ifNull(input_tokens, 0)) AS total_input_tokens,
			sum(ifNull(output_tokens, 0)) AS total_output_tokens,
			COUNT(input_tokens) AS total_count
		FROM ModelInference
		WHERE UUIDv7ToDateTime(id) < fromUnixTimestamp64Nano(%d)`, cutoverNanos)

	if err := m.Client.RunQuerySynchronous(ctx, &counts, countQuery, nil); err != nil {
		return err
	}

	if len(counts) == 0 {
		return nil
	}

	c := counts[0]

	backfillRows := []any{
		rows.CumulativeUsage{Type: rows.CumulativeUsageInputTokens, Count: c.TotalInputTokens},
		rows.CumulativeUsage{Type: rows.CumulativeUsageOutputTokens, Count: c.TotalOutputTokens},
		rows.CumulativeUsage{Type: rows.CumulativeUsageModelInferences, Count: c.TotalCount},
	}

	return m.Client.InsertBatch(ctx, rows.CumulativeUsageTable, backfillRows)
}

func (m *CumulativeUsageView) HasSucceeded(ctx context.Context) (bool, error) {
	should, err := m.ShouldApply(ctx)
	if err != nil {
		return false, err
	}

	return !should, nil
}

func (m *CumulativeUsageView) RollbackInstructions() string {
	return "DROP TABLE IF EXISTS CumulativeUsageView;\nDROP TABLE IF EXISTS CumulativeUsage;\n"
}
