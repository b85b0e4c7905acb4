package migrations

import (
	"context"

	"github.com/looplj/tzcore/internal/migrate"
	"github.com/looplj/tzcore/internal/store"
)

// InitialTables creates the base ChatInference, JsonInference, and
// ModelInference tables. Grounded on migration_0000.rs — the original
// system's first migration bundles feedback tables in alongside these, but
// those are covered by internal/store/rows' own struct definitions and are
// created here too since nothing upstream of this migration creates them.
type InitialTables struct {
	Client *store.Client
}

var _ migrate.Migration = (*InitialTables)(nil)

func (m *InitialTables) Name() string { return "0001_initial_tables" }

// CanApply has no precondition — this is the first migration in the chain.
func (m *InitialTables) CanApply(ctx context.Context) error { return nil }

func (m *InitialTables) ShouldApply(ctx context.Context) (bool, error) {
	for _, table := range []string{
		"BooleanMetricFeedback", "FloatMetricFeedback", "CommentFeedback", "DemonstrationFeedback",
		"ChatInference", "JsonInference", "ModelInference",
	} {
		exists, err := tableExists(ctx, m.Client, table)
		if err != nil {
			return false, err
		}

		if !exists {
			return true, nil
		}
	}

	return false, nil
}

func (m *InitialTables) Apply(ctx context.Context, cleanStart bool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS BooleanMetricFeedback
		(
			id UUID,
			target_id UUID,
			metric_name LowCardinality(String),
			value Bool,
			timestamp DateTime MATERIALIZED UUIDv7ToDateTime(id)
		) ENGINE = MergeTree()
		ORDER BY (metric_name, target_id)`,

		`CREATE TABLE IF NOT EXISTS FloatMetricFeedback
		(
			id UUID,
			target_id UUID,
			metric_name LowCardinality(String),
			value Float32,
			timestamp DateTime MATERIALIZED UUIDv7ToDateTime(id)
		) ENGINE = MergeTree()
		ORDER BY (metric_name, target_id)`,

		`CREATE TABLE IF NOT EXISTS CommentFeedback
		(
			id UUID,
			target_id UUID,
			target_type Enum('inference' = 1, 'episode' = 2),
			value String,
			timestamp DateTime MATERIALIZED UUIDv7ToDateTime(id)
		) ENGINE = MergeTree()
		ORDER BY target_id`,

		`CREATE TABLE IF NOT EXISTS DemonstrationFeedback
		(
			id UUID,
			inference_id UUID,
			value String,
			timestamp DateTime MATERIALIZED UUIDv7ToDateTime(id)
		) ENGINE = MergeTree()
		ORDER BY inference_id`,

		`CREATE TABLE IF NOT EXISTS ChatInference
		(
			id UUID,
			function_name LowCardinality(String),
			variant_name LowCardinality(String),
			episode_id UUID,
			input String,
			output String,
			tool_params String,
			inference_params String,
			processing_time_ms UInt32,
			timestamp DateTime MATERIALIZED UUIDv7ToDateTime(id)
		) ENGINE = MergeTree()
		ORDER BY (function_name, variant_name, episode_id)`,

		`CREATE TABLE IF NOT EXISTS JsonInference
		(
			id UUID,
			function_name LowCardinality(String),
			variant_name LowCardinality(String),
			episode_id UUID,
			input String,
			output String,
			output_schema String,
			inference_params String,
			processing_time_ms UInt32,
			timestamp DateTime MATERIALIZED UUIDv7ToDateTime(id)
		) ENGINE = MergeTree()
		ORDER BY (function_name, variant_name, episode_id)`,

		`CREATE TABLE IF NOT EXISTS ModelInference
		(
			id UUID,
			inference_id UUID,
			raw_request String,
			raw_response String,
			model_name LowCardinality(String),
			model_provider_name LowCardinality(String),
			input_tokens UInt32,
			output_tokens UInt32,
			response_time_ms UInt32,
			ttft_ms Nullable(UInt32),
			timestamp DateTime MATERIALIZED UUIDv7ToDateTime(id)
		) ENGINE = MergeTree()
		ORDER BY inference_id`,
	}

	for _, stmt := range statements {
		if err := m.Client.Exec(ctx, stmt, nil); err != nil {
			return err
		}
	}

	return nil
}

func (m *InitialTables) HasSucceeded(ctx context.Context) (bool, error) {
	should, err := m.ShouldApply(ctx)
	if err != nil {
		return false, err
	}

	return !should, nil
}

func (m *InitialTables) RollbackInstructions() string {
	return "-- CAREFUL: THIS WILL DELETE ALL DATA\n" +
		"DROP TABLE IF EXISTS BooleanMetricFeedback;\n" +
		"DROP TABLE IF EXISTS FloatMetricFeedback;\n" +
		"DROP TABLE IF EXISTS CommentFeedback;\n" +
		"DROP TABLE IF EXISTS DemonstrationFeedback;\n" +
		"DROP TABLE IF EXISTS ChatInference;\n" +
		"DROP TABLE IF EXISTS JsonInference;\n" +
		"DROP TABLE IF EXISTS ModelInference;\n"
}
