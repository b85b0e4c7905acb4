package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/looplj/tzcore/internal/ids"
	"github.com/looplj/tzcore/internal/store/rows"
)

// DICLStore persists and retrieves dynamic in-context-learning examples,
// grounded on dicl_queries.rs's insert_dicl_example/get_similar_dicl_examples
// pair, adapted from pgvector's `<=>` cosine-distance operator to
// ClickHouse's `cosineDistance` function.
type DICLStore struct {
	client *Client
}

func NewDICLStore(client *Client) *DICLStore {
	return &DICLStore{client: client}
}

// InsertExample stores one curated example under functionName/variantName.
func (s *DICLStore) InsertExample(ctx context.Context, functionName, variantName, input, output string, embedding []float32) (uuid.UUID, error) {
	id := ids.New()

	row := rows.DICLExample{
		ID:           id,
		FunctionName: functionName,
		VariantName:  variantName,
		Input:        input,
		Output:       output,
		Embedding:    embedding,
	}

	return id, s.client.Insert(ctx, rows.DICLExampleTable, row)
}

type similarExampleRow struct {
	Input  string `ch:"input"`
	Output string `ch:"output"`
}

// SimilarExamples returns the k examples closest to queryEmbedding within
// functionName/variantName's example set, nearest first.
func (s *DICLStore) SimilarExamples(ctx context.Context, functionName, variantName string, queryEmbedding []float32, k int) ([]similarExampleRow, error) {
	var out []similarExampleRow

	err := s.client.RunQuerySynchronous(ctx, &out, `
		SELECT input, output
		FROM DICLExample
		WHERE function_name = {function_name:String} AND variant_name = {variant_name:String}
		ORDER BY cosineDistance(embedding, {query_embedding:Array(Float32)}) ASC
		LIMIT {limit:UInt32}`,
		map[string]any{
			"function_name":   functionName,
			"variant_name":    variantName,
			"query_embedding": queryEmbedding,
			"limit":           uint32(k),
		},
	)
	if err != nil {
		return nil, err
	}

	return out, nil
}
