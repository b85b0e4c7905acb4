// Package rows defines the analytical-store row shapes of spec §4.10, one
// Go struct per ClickHouse table/materialized-view kind spec.md names.
// Column layouts are grounded on the original Rust system's migrations
// under _examples/original_source (migration_0000 and friends); `ch`
// struct tags name the ClickHouse column each field binds to.
package rows

import "github.com/google/uuid"

// ChatInference is one row of the ChatInference table: one per
// non-streaming-or-aggregated chat-function inference. Grounded on
// migration_0000's `CREATE TABLE ChatInference` (original_source
// tensorzero-internal/src/clickhouse/migration_manager/migrations/migration_0000.rs).
type ChatInference struct {
	ID              uuid.UUID         `ch:"id"`
	FunctionName    string            `ch:"function_name"`
	VariantName     string            `ch:"variant_name"`
	EpisodeID       uuid.UUID         `ch:"episode_id"`
	Input           string            `ch:"input"`
	Output          string            `ch:"output"`
	ToolParams      string            `ch:"tool_params"`
	InferenceParams string            `ch:"inference_params"`
	ProcessingTimeMS uint32           `ch:"processing_time_ms"`
	Tags            map[string]string `ch:"tags"`
}

const ChatInferenceTable = "ChatInference"
