package rows

import "github.com/google/uuid"

// BatchModelInference holds one pending inference inside a batch job —
// enough detail to later materialize it into ChatInference/JsonInference +
// ModelInference once the batch completes. Grounded on migration_0006's
// `CREATE TABLE BatchModelInference`.
type BatchModelInference struct {
	InferenceID       uuid.UUID         `ch:"inference_id"`
	BatchID           uuid.UUID         `ch:"batch_id"`
	FunctionName      string            `ch:"function_name"`
	VariantName       string            `ch:"variant_name"`
	EpisodeID         uuid.UUID         `ch:"episode_id"`
	Input             string            `ch:"input"`
	InputMessages     string            `ch:"input_messages"`
	System            *string           `ch:"system"`
	ToolParams        *string           `ch:"tool_params"`
	InferenceParams   string            `ch:"inference_params"`
	RawRequest        string            `ch:"raw_request"`
	ModelName         string            `ch:"model_name"`
	ModelProviderName string            `ch:"model_provider_name"`
	OutputSchema      *string           `ch:"output_schema"`
	Tags              map[string]string `ch:"tags"`
}

const BatchModelInferenceTable = "BatchModelInference"
