package rows

import "github.com/google/uuid"

// JsonInference mirrors ChatInference for json-function inferences, adding
// OutputSchema and dropping ToolParams. Grounded on migration_0000's
// `CREATE TABLE JsonInference`.
type JsonInference struct {
	ID               uuid.UUID         `ch:"id"`
	FunctionName     string            `ch:"function_name"`
	VariantName      string            `ch:"variant_name"`
	EpisodeID        uuid.UUID         `ch:"episode_id"`
	Input            string            `ch:"input"`
	Output           string            `ch:"output"`
	OutputSchema     string            `ch:"output_schema"`
	InferenceParams  string            `ch:"inference_params"`
	ProcessingTimeMS uint32            `ch:"processing_time_ms"`
	Tags             map[string]string `ch:"tags"`
}

const JsonInferenceTable = "JsonInference"
