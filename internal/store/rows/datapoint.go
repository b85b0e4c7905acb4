package rows

import "github.com/google/uuid"

// ChatInferenceDatapoint is one row of a curated evaluation/fine-tuning
// dataset built from (or synthesized alongside) chat-function inferences.
// ReplacingMergeTree semantics (is_deleted/updated_at) let a datapoint be
// soft-deleted or edited by inserting a newer row with the same id, the
// same pattern the Rust migration uses. Grounded on migration_0016's
// `CREATE TABLE ChatInferenceDatapoint` (original_source
// tensorzero-core/src/db/clickhouse/migration_manager/migrations/
// migration_0016.rs).
type ChatInferenceDatapoint struct {
	DatasetName  string            `ch:"dataset_name"`
	FunctionName string            `ch:"function_name"`
	// ID is the datapoint's own id; when the datapoint was generated from
	// an existing inference rather than synthesized, this is that
	// inference's id.
	ID         uuid.UUID         `ch:"id"`
	EpisodeID  *uuid.UUID        `ch:"episode_id"`
	Input      string            `ch:"input"`
	Output     *string           `ch:"output"`
	ToolParams string            `ch:"tool_params"`
	Tags       map[string]string `ch:"tags"`
	Auxiliary  string            `ch:"auxiliary"`
	IsDeleted  bool              `ch:"is_deleted"`
}

const ChatInferenceDatapointTable = "ChatInferenceDatapoint"

// JsonInferenceDatapoint mirrors ChatInferenceDatapoint for json-function
// datasets, trading ToolParams for OutputSchema. Grounded on
// migration_0016's `CREATE TABLE JsonInferenceDatapoint`.
type JsonInferenceDatapoint struct {
	DatasetName  string            `ch:"dataset_name"`
	FunctionName string            `ch:"function_name"`
	ID           uuid.UUID         `ch:"id"`
	EpisodeID    *uuid.UUID        `ch:"episode_id"`
	Input        string            `ch:"input"`
	Output       *string           `ch:"output"`
	OutputSchema string            `ch:"output_schema"`
	Tags         map[string]string `ch:"tags"`
	Auxiliary    string            `ch:"auxiliary"`
	IsDeleted    bool              `ch:"is_deleted"`
}

const JsonInferenceDatapointTable = "JsonInferenceDatapoint"
