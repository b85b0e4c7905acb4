package httpapi

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/looplj/tzcore/internal/pipeline"
	"github.com/looplj/tzcore/internal/providers"
	"github.com/looplj/tzcore/internal/store"
)

// HandlerCatalog is the read surface Handlers needs beyond what
// pipeline.Pipeline already exposes (resolving a function's Kind for
// streaming aggregation, and reporting loaded counts for GET /status).
type HandlerCatalog interface {
	pipeline.Catalog
	FunctionNames() []string
	ModelNames() []string
}

// FeedbackStore is the write surface POST /feedback depends on.
type FeedbackStore interface {
	WriteFeedback(ctx context.Context, req store.FeedbackRequest) (uuid.UUID, error)
}

// Embedder is the provider-facing surface POST /openai/v1/embeddings
// depends on. cmd/gateway wires it to *internal/embed.Service, which
// dispatches through the model router's Embed. A nil Embedder makes the
// route respond with a clear error instead of a 404.
type Embedder interface {
	Embed(ctx context.Context, model string, input []string) (embeddings [][]float32, usage providers.Usage, err error)
}

// Handlers bundles every collaborator the route handlers call into, built
// once at process start and shared across requests the same way
// pipeline.Pipeline itself is stateless between calls.
type Handlers struct {
	Pipeline *pipeline.Pipeline
	Catalog  HandlerCatalog
	Feedback FeedbackStore
	Embedder Embedder

	StartedAt time.Time
}
