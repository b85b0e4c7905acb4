// Package dicl implements pipeline.Retriever by embedding the query text
// and reading the nearest stored examples back out of the analytical
// store, grounded on dicl.rs's DiclOptimizationJobHandle /
// dicl_queries.rs's get_similar_dicl_examples round trip.
package dicl

import (
	"context"
	"fmt"

	"github.com/looplj/tzcore/internal/embed"
	"github.com/looplj/tzcore/internal/pipeline"
	"github.com/looplj/tzcore/internal/store"
)

// Retriever adapts a DICLStore and an embedding service to
// pipeline.Retriever.
type Retriever struct {
	Store *store.DICLStore
	Embed *embed.Service
}

func New(s *store.DICLStore, e *embed.Service) *Retriever {
	return &Retriever{Store: s, Embed: e}
}

var _ pipeline.Retriever = (*Retriever)(nil)

// Retrieve embeds query against embeddingModel and returns the k nearest
// stored examples scoped to functionName/variantName.
func (r *Retriever) Retrieve(ctx context.Context, functionName, variantName, embeddingModel string, k int, query string) ([]pipeline.RetrievedExample, error) {
	vectors, _, err := r.Embed.Embed(ctx, embeddingModel, []string{query})
	if err != nil {
		return nil, fmt.Errorf("dicl: embed query: %w", err)
	}

	if len(vectors) == 0 {
		return nil, fmt.Errorf("dicl: embedding provider returned no vectors")
	}

	rows, err := r.Store.SimilarExamples(ctx, functionName, variantName, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("dicl: similarity search: %w", err)
	}

	examples := make([]pipeline.RetrievedExample, len(rows))
	for i, row := range rows {
		examples[i] = pipeline.RetrievedExample{Input: row.Input, Output: row.Output}
	}

	return examples, nil
}
