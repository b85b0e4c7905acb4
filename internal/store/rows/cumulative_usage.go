package rows

// CumulativeUsage is a SummingMergeTree-style running total, one row per
// `type` ("input_tokens", "output_tokens", "model_inferences"), amortizing
// the cost of summing ModelInference's token columns at read time.
// Grounded on migration_0034's `CREATE TABLE CumulativeUsage` (original_source
// tensorzero-core/src/clickhouse/migration_manager/migrations/
// migration_0034.rs); its materialized view there folds each ModelInference
// row into three arrayJoin'd (type, count) tuples, reproduced here as three
// rows in one InsertBatch call from internal/store's write path rather than a
// ClickHouse-side view, since this store owns both writes already.
type CumulativeUsage struct {
	Type  string `ch:"type"`
	Count uint64 `ch:"count"`
}

const CumulativeUsageTable = "CumulativeUsage"

const (
	CumulativeUsageInputTokens     = "input_tokens"
	CumulativeUsageOutputTokens    = "output_tokens"
	CumulativeUsageModelInferences = "model_inferences"
)
