package migrations

import (
	"context"
	"fmt"

	"github.com/looplj/tzcore/internal/migrate"
	"github.com/looplj/tzcore/internal/store"
)

// inferenceIDIndexTarget pairs a table with the column its bloom-filter
// index covers and the name the index is given, matching migration_0027.rs
// (InferenceTag/ChatInference/JsonInference indexed on the inference id,
// the two datapoint tables indexed on their own id).
type inferenceIDIndexTarget struct {
	table     string
	column    string
	indexName string
}

// InferenceIDIndex adds bloom-filter indexes so point lookups by inference
// id don't force a full scan. Grounded on migration_0027.rs.
type InferenceIDIndex struct {
	Client *store.Client
}

var _ migrate.Migration = (*InferenceIDIndex)(nil)

func (m *InferenceIDIndex) targets() []inferenceIDIndexTarget {
	return []inferenceIDIndexTarget{
		{table: "InferenceTag", column: "inference_id", indexName: "inference_id_index"},
		{table: "ChatInference", column: "id", indexName: "inference_id_index"},
		{table: "JsonInference", column: "id", indexName: "inference_id_index"},
		{table: "ChatInferenceDatapoint", column: "id", indexName: "id_index"},
		{table: "JsonInferenceDatapoint", column: "id", indexName: "id_index"},
	}
}

func (m *InferenceIDIndex) Name() string { return "0003_inference_id_index" }

func (m *InferenceIDIndex) CanApply(ctx context.Context) error {
	for _, t := range m.targets() {
		exists, err := tableExists(ctx, m.Client, t.table)
		if err != nil {
			return err
		}

		if !exists {
			return fmt.Errorf("table %s does not exist", t.table)
		}
	}

	return nil
}

func (m *InferenceIDIndex) ShouldApply(ctx context.Context) (bool, error) {
	for _, t := range m.targets() {
		exists, err := indexExists(ctx, m.Client, t.table, t.indexName)
		if err != nil {
			return false, err
		}

		if !exists {
			return true, nil
		}
	}

	return false, nil
}

func (m *InferenceIDIndex) Apply(ctx context.Context, cleanStart bool) error {
	for _, t := range m.targets() {
		addIndex := fmt.Sprintf(
			`ALTER TABLE %s ADD INDEX IF NOT EXISTS %s %s TYPE bloom_filter GRANULARITY 1`,
			t.table, t.indexName, t.column)
		if err := m.Client.Exec(ctx, addIndex, nil); err != nil {
			return err
		}

		materialize := fmt.Sprintf(`ALTER TABLE %s MATERIALIZE INDEX %s`, t.table, t.indexName)
		if err := m.Client.Exec(ctx, materialize, nil); err != nil {
			return err
		}
	}

	return nil
}

func (m *InferenceIDIndex) HasSucceeded(ctx context.Context) (bool, error) {
	should, err := m.ShouldApply(ctx)
	if err != nil {
		return false, err
	}

	return !should, nil
}

func (m *InferenceIDIndex) RollbackInstructions() string {
	var out string

	for _, t := range m.targets() {
		out += fmt.Sprintf("ALTER TABLE %s DROP INDEX IF EXISTS %s;\n", t.table, t.indexName)
	}

	return out
}
