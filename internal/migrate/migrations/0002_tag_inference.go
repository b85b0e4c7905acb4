package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/looplj/tzcore/internal/migrate"
	"github.com/looplj/tzcore/internal/store"
)

// TagInference creates the InferenceTag table plus the materialized views
// that feed it from ChatInference/JsonInference (grounded on
// migration_0005.rs), and the InferenceById/InferenceByEpisodeId lookup
// tables plus their own materialized views and cutover-timestamped backfill
// (grounded on gateway/migration_0001.rs and migration_0007.rs).
//
// The cutover pattern: pick a timestamp T slightly in the future, create
// the view filtered to rows at or after T, wait until T passes, then
// backfill everything before T with a plain INSERT ... SELECT. Rows
// stamped at or after T are covered by the view; rows stamped before T,
// including those written while waiting for T, are covered by the
// backfill; nothing is missed or duplicated.
type TagInference struct {
	Client *store.Client

	// CutoverDelay is how far in the future to set the view cutover
	// timestamp when not doing a clean start. Defaults to 15s, matching
	// the original system's view_offset.
	CutoverDelay time.Duration
}

var _ migrate.Migration = (*TagInference)(nil)

func (m *TagInference) Name() string { return "0002_tag_inference" }

func (m *TagInference) CanApply(ctx context.Context) error {
	for _, table := range []string{"ChatInference", "JsonInference"} {
		exists, err := tableExists(ctx, m.Client, table)
		if err != nil {
			return err
		}

		if !exists {
			return fmt.Errorf("table %s does not exist", table)
		}
	}

	return nil
}

func (m *TagInference) ShouldApply(ctx context.Context) (bool, error) {
	if exists, err := tableExists(ctx, m.Client, "InferenceTag"); err != nil {
		return false, err
	} else if !exists {
		return true, nil
	}

	for _, table := range []string{"ChatInference", "JsonInference"} {
		has, err := columnExists(ctx, m.Client, table, "tags")
		if err != nil {
			return false, err
		}

		if !has {
			return true, nil
		}
	}

	for _, view := range []string{"ChatInferenceTagView", "JsonInferenceTagView"} {
		exists, err := tableExists(ctx, m.Client, view)
		if err != nil {
			return false, err
		}

		if !exists {
			return true, nil
		}
	}

	if exists, err := tableExists(ctx, m.Client, "InferenceById"); err != nil {
		return false, err
	} else if !exists {
		return true, nil
	}

	if exists, err := tableExists(ctx, m.Client, "InferenceByEpisodeId"); err != nil {
		return false, err
	} else if !exists {
		return true, nil
	}

	return false, nil
}

func (m *TagInference) cutoverDelay() time.Duration {
	if m.CutoverDelay > 0 {
		return m.CutoverDelay
	}

	return 15 * time.Second
}

func (m *TagInference) Apply(ctx context.Context, cleanStart bool) error {
	if err := m.applyTags(ctx); err != nil {
		return err
	}

	if err := m.applyIndex(ctx, cleanStart, "InferenceById", "ChatInferenceByIdView", "JsonInferenceByIdView",
		`id UUID, function_name LowCardinality(String), variant_name LowCardinality(String), episode_id UUID, function_type Enum('chat' = 1, 'json' = 2)`,
		"id", "ORDER BY id"); err != nil {
		return err
	}

	return m.applyIndex(ctx, cleanStart, "InferenceByEpisodeId", "ChatInferenceByEpisodeIdView", "JsonInferenceByEpisodeIdView",
		`episode_id UUID, id UUID, function_name LowCardinality(String), variant_name LowCardinality(String), function_type Enum('chat' = 1, 'json' = 2)`,
		"episode_id", "ORDER BY (episode_id, id)")
}

func (m *TagInference) applyTags(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS InferenceTag
		(
			function_name LowCardinality(String),
			key String,
			value String,
			inference_id UUID
		) ENGINE = MergeTree()
		ORDER BY (function_name, key, value)`,

		`ALTER TABLE ChatInference ADD COLUMN IF NOT EXISTS tags Map(String, String) DEFAULT map()`,
		`ALTER TABLE JsonInference ADD COLUMN IF NOT EXISTS tags Map(String, String) DEFAULT map()`,

		`CREATE MATERIALIZED VIEW IF NOT EXISTS ChatInferenceTagView
		TO InferenceTag
		AS
			SELECT function_name, key, tags[key] AS value, id AS inference_id
			FROM ChatInference
			ARRAY JOIN mapKeys(tags) AS key`,

		`CREATE MATERIALIZED VIEW IF NOT EXISTS JsonInferenceTagView
		TO InferenceTag
		AS
			SELECT function_name, key, tags[key] AS value, id AS inference_id
			FROM JsonInference
			ARRAY JOIN mapKeys(tags) AS key`,
	}

	for _, stmt := range statements {
		if err := m.Client.Exec(ctx, stmt, nil); err != nil {
			return err
		}
	}

	return nil
}

// applyIndex builds one of the two by-id lookup tables (InferenceById,
// InferenceByEpisodeId), each following the identical cutover/backfill
// shape the original system uses twice with only the key column and
// ordering changed.
func (m *TagInference) applyIndex(ctx context.Context, cleanStart bool, table, chatView, jsonView, columns, keyColumn, orderBy string) error {
	delay := time.Duration(0)
	if !cleanStart {
		delay = m.cutoverDelay()
	}

	cutover := time.Now().Add(delay)
	cutoverUnix := cutover.Unix()

	if err := m.Client.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() %s`, table, columns, orderBy), nil); err != nil {
		return err
	}

	chatSelect := "id, function_name, variant_name, episode_id, 'chat'"
	jsonSelect := "id, function_name, variant_name, episode_id, 'json'"

	if keyColumn == "episode_id" {
		chatSelect = "episode_id, id, function_name, variant_name, 'chat'"
		jsonSelect = "episode_id, id, function_name, variant_name, 'json'"
	}

	if err := m.Client.Exec(ctx, fmt.Sprintf(
		`CREATE MATERIALIZED VIEW IF NOT EXISTS %s TO %s AS SELECT %s FROM ChatInference WHERE UUIDv7ToDateTime(id) >= toDateTime(%d)`,
		chatView, table, chatSelect, cutoverUnix), nil); err != nil {
		return err
	}

	if err := m.Client.Exec(ctx, fmt.Sprintf(
		`CREATE MATERIALIZED VIEW IF NOT EXISTS %s TO %s AS SELECT %s FROM JsonInference WHERE UUIDv7ToDateTime(id) >= toDateTime(%d)`,
		jsonView, table, jsonSelect, cutoverUnix), nil); err != nil {
		return err
	}

	if cleanStart {
		return nil
	}

	time.Sleep(time.Until(cutover))

	if err := m.Client.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s SELECT %s FROM ChatInference WHERE UUIDv7ToDateTime(id) < toDateTime(%d)`,
		table, chatSelect, cutoverUnix), nil); err != nil {
		return err
	}

	return m.Client.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s SELECT %s FROM JsonInference WHERE UUIDv7ToDateTime(id) < toDateTime(%d)`,
		table, jsonSelect, cutoverUnix), nil)
}

func (m *TagInference) HasSucceeded(ctx context.Context) (bool, error) {
	should, err := m.ShouldApply(ctx)
	if err != nil {
		return false, err
	}

	return !should, nil
}

func (m *TagInference) RollbackInstructions() string {
	return "" +
		"DROP VIEW IF EXISTS ChatInferenceTagView;\n" +
		"DROP VIEW IF EXISTS JsonInferenceTagView;\n" +
		"DROP TABLE IF EXISTS InferenceTag;\n" +
		"ALTER TABLE ChatInference DROP COLUMN tags;\n" +
		"ALTER TABLE JsonInference DROP COLUMN tags;\n" +
		"DROP VIEW IF EXISTS ChatInferenceByIdView;\n" +
		"DROP VIEW IF EXISTS JsonInferenceByIdView;\n" +
		"DROP TABLE IF EXISTS InferenceById;\n" +
		"DROP VIEW IF EXISTS ChatInferenceByEpisodeIdView;\n" +
		"DROP VIEW IF EXISTS JsonInferenceByEpisodeIdView;\n" +
		"DROP TABLE IF EXISTS InferenceByEpisodeId;\n"
}
