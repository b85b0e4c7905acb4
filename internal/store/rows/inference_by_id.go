package rows

import "github.com/google/uuid"

// InferenceById maps an inference id back to its owning function/variant
// without an index scan over ChatInference/JsonInference, used by the
// demonstration-feedback validation path (spec §4.10 "efficiently validate
// the type of demonstrations"). Grounded on migration_0001's
// `CREATE TABLE InferenceById` (original_source gateway/src/
// clickhouse_migration_manager/migrations/migration_0001.rs).
type InferenceById struct {
	ID           uuid.UUID    `ch:"id"`
	FunctionName string       `ch:"function_name"`
	VariantName  string       `ch:"variant_name"`
	EpisodeID    uuid.UUID    `ch:"episode_id"`
	FunctionType FunctionType `ch:"function_type"`
}

const InferenceByIdTable = "InferenceById"
