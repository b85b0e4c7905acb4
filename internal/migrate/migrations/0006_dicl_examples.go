package migrations

import (
	"context"

	"github.com/looplj/tzcore/internal/migrate"
	"github.com/looplj/tzcore/internal/store"
)

// DICLExamples creates the table backing dynamic in-context-learning
// variant retrieval (dicl.rs's `DynamicInContextLearningExample`, stored
// with pgvector in the original's Postgres feature store). ClickHouse has
// no vector index type in the retrieved driver's feature set, so examples
// are ordered by `cosineDistance` at query time instead of an ANN index —
// acceptable at DICL's expected example-set sizes (tens to low thousands
// per function/variant), and documented in DESIGN.md as a scale tradeoff.
type DICLExamples struct {
	Client *store.Client
}

var _ migrate.Migration = (*DICLExamples)(nil)

func (m *DICLExamples) Name() string { return "0006_dicl_examples" }

func (m *DICLExamples) CanApply(ctx context.Context) error { return nil }

func (m *DICLExamples) ShouldApply(ctx context.Context) (bool, error) {
	exists, err := tableExists(ctx, m.Client, "DICLExample")
	if err != nil {
		return false, err
	}

	return !exists, nil
}

func (m *DICLExamples) Apply(ctx context.Context, cleanStart bool) error {
	return m.Client.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS DICLExample
		(
			id UUID,
			function_name LowCardinality(String),
			variant_name LowCardinality(String),
			namespace LowCardinality(String) DEFAULT '',
			input String,
			output String,
			embedding Array(Float32),
			timestamp DateTime MATERIALIZED UUIDv7ToDateTime(id)
		) ENGINE = MergeTree()
		ORDER BY (function_name, variant_name, id)`, nil)
}

func (m *DICLExamples) HasSucceeded(ctx context.Context) (bool, error) {
	should, err := m.ShouldApply(ctx)
	if err != nil {
		return false, err
	}

	return !should, nil
}

func (m *DICLExamples) RollbackInstructions() string {
	return "DROP TABLE IF EXISTS DICLExample;\n"
}
