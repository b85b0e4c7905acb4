package migrations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// These migrations issue every precondition/apply/backfill check straight
// against *store.Client, which wraps an un-inspectable clickhouse-go/v2
// driver.Conn the same way internal/store's own tests cannot mock it (see
// internal/store's test scope note). So these tests cover only the parts
// that don't require a live connection: static target lists, default
// delays, and the literal rollback SQL each migration reports.

func TestInferenceIDIndexTargetsCoverEveryTableFromTheOriginalMigration(t *testing.T) {
	m := &InferenceIDIndex{}
	targets := m.targets()

	assert.Len(t, targets, 5)

	byTable := map[string]inferenceIDIndexTarget{}
	for _, tgt := range targets {
		byTable[tgt.table] = tgt
	}

	assert.Equal(t, "inference_id", byTable["InferenceTag"].column)
	assert.Equal(t, "id", byTable["ChatInference"].column)
	assert.Equal(t, "id", byTable["JsonInference"].column)
	assert.Equal(t, "id_index", byTable["ChatInferenceDatapoint"].indexName)
	assert.Equal(t, "id_index", byTable["JsonInferenceDatapoint"].indexName)
}

func TestInferenceIDIndexRollbackDropsEveryIndex(t *testing.T) {
	m := &InferenceIDIndex{}
	instructions := m.RollbackInstructions()

	assert.Contains(t, instructions, "ALTER TABLE InferenceTag DROP INDEX IF EXISTS inference_id_index;")
	assert.Contains(t, instructions, "ALTER TABLE JsonInferenceDatapoint DROP INDEX IF EXISTS id_index;")
}

func TestTagInferenceCutoverDelayDefaultsTo15Seconds(t *testing.T) {
	m := &TagInference{}
	assert.Equal(t, 15*time.Second, m.cutoverDelay())
}

func TestTagInferenceCutoverDelayHonorsOverride(t *testing.T) {
	m := &TagInference{CutoverDelay: 2 * time.Second}
	assert.Equal(t, 2*time.Second, m.cutoverDelay())
}

func TestCumulativeUsageViewCutoverDelayDefaultsTo15Seconds(t *testing.T) {
	m := &CumulativeUsageView{}
	assert.Equal(t, 15*time.Second, m.cutoverDelay())
}

func TestInitialTablesNameAndRollback(t *testing.T) {
	m := &InitialTables{}
	assert.Equal(t, "0001_initial_tables", m.Name())
	assert.Contains(t, m.RollbackInstructions(), "DROP TABLE IF EXISTS ModelInference;")
}

func TestErrorsColumnLeavesOriginalErrorsColumnUntouched(t *testing.T) {
	m := &ErrorsColumn{}
	instructions := m.RollbackInstructions()

	assert.NotContains(t, instructions, "DROP COLUMN errors,")
	assert.Contains(t, instructions, "DROP COLUMN errors_list;")
}
