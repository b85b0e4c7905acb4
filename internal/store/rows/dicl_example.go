package rows

import "github.com/google/uuid"

// DICLExample is one stored dynamic in-context-learning example, grounded
// on dicl_queries.rs's StoredDICLExample (input/output pair plus its
// embedding vector, scoped to the function/variant it was curated for).
type DICLExample struct {
	ID           uuid.UUID `ch:"id"`
	FunctionName string    `ch:"function_name"`
	VariantName  string    `ch:"variant_name"`
	Namespace    string    `ch:"namespace"`
	Input        string    `ch:"input"`
	Output       string    `ch:"output"`
	Embedding    []float32 `ch:"embedding"`
}

const DICLExampleTable = "DICLExample"
