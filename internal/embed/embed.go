// Package embed adapts internal/router's provider dispatch to the single
// Embed(ctx, model, input) shape both the OpenAI-compatible
// /openai/v1/embeddings shim (internal/httpapi) and DICL variant retrieval
// (internal/dicl) need, the same way internal/pipeline adapts it to
// chat-style inference — grounded on the teacher's one-router-many-
// callers wiring in internal/llm/pipeline.
package embed

import (
	"context"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/providers"
	"github.com/looplj/tzcore/internal/router"
)

// Catalog is the read surface Service resolves a model's provider list
// against.
type Catalog interface {
	GetModel(name string) (*catalog.Model, error)
	ProviderByName(name string) (*catalog.Provider, bool)
}

// Service embeds text by dispatching to an embedding-model's provider list
// through Router, the same fallback-across-providers behavior Router.Infer
// already gives chat completions.
type Service struct {
	Router  *router.Router
	Catalog Catalog
}

func New(r *router.Router, c Catalog) *Service {
	return &Service{Router: r, Catalog: c}
}

// Embed resolves modelName against the catalog and embeds every string in
// input in one call.
func (s *Service) Embed(ctx context.Context, modelName string, input []string) ([][]float32, providers.Usage, error) {
	model, err := s.Catalog.GetModel(modelName)
	if err != nil {
		return nil, providers.Usage{}, err
	}

	resp, _, err := s.Router.Embed(ctx, model, s.Catalog.ProviderByName, &providers.EmbeddingRequest{Input: input})
	if err != nil {
		return nil, providers.Usage{}, err
	}

	return resp.Embeddings, resp.Usage, nil
}
