package rows

import "github.com/google/uuid"

// InferenceTag indexes the free-form `tags` map every inference carries so
// a tag key/value pair can be looked up back to its inference. Grounded on
// migration_0005's `CREATE TABLE InferenceTag` (original_source
// tensorzero-internal/.../migration_0005.rs); populated from the
// ChatInference/JsonInference `tags` column the same way that migration's
// materialized views do, here done at write time instead of via a
// ClickHouse materialized view since internal/store issues both inserts
// itself.
type InferenceTag struct {
	FunctionName string    `ch:"function_name"`
	Key          string    `ch:"key"`
	Value        string    `ch:"value"`
	InferenceID  uuid.UUID `ch:"inference_id"`
}

const InferenceTagTable = "InferenceTag"
