package rows

import "github.com/google/uuid"

// ModelInference is one row per provider call underlying an inference
// (there can be more than one per ChatInference/JsonInference row when a
// best-of-n/mixture-of-n variant dispatches multiple candidates).
// Grounded on migration_0000's `CREATE TABLE ModelInference`.
type ModelInference struct {
	ID                uuid.UUID `ch:"id"`
	InferenceID       uuid.UUID `ch:"inference_id"`
	RawRequest        string    `ch:"raw_request"`
	RawResponse       string    `ch:"raw_response"`
	ModelName         string    `ch:"model_name"`
	ModelProviderName string    `ch:"model_provider_name"`
	InputTokens       uint32    `ch:"input_tokens"`
	OutputTokens      uint32    `ch:"output_tokens"`
	ResponseTimeMS    uint32    `ch:"response_time_ms"`
	TTFTMS            *uint32   `ch:"ttft_ms"`
}

const ModelInferenceTable = "ModelInference"
