package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/providers"
)

// InferenceRecord is what the pipeline hands the analytical store after a
// successful, non-dryrun, non-streaming inference (spec §4.6 step 4). The
// store translates this into the ChatInference/JsonInference + ModelInference
// row pair (spec §4.10); that translation lives in internal/store.
type InferenceRecord struct {
	InferenceID  uuid.UUID
	EpisodeID    uuid.UUID
	FunctionKind catalog.FunctionKind
	FunctionName string
	VariantName  string
	ModelName    string
	ProviderName string

	Content      []providers.ContentBlock
	FinishReason providers.FinishReason
	Usage        providers.Usage
	Cached       bool

	RawRequest  []byte
	RawResponse []byte

	Tags map[string]string
}

// Store is the analytical-store write surface the pipeline depends on.
// Failures are logged and swallowed by the caller (spec §4.6 "Failure
// semantics") — Store itself need not retry.
type Store interface {
	WriteInference(ctx context.Context, record InferenceRecord) error
}
