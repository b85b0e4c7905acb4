package migrations

import (
	"context"
	"fmt"

	"github.com/looplj/tzcore/internal/migrate"
	"github.com/looplj/tzcore/internal/store"
)

// ErrorsColumn widens BatchRequest's batch-polling error records (grounded
// on migration_0008.rs, which also adds raw_request/raw_response/
// function_name/variant_name to BatchRequest — those are covered here for
// the same reason the original bundles them into one migration).
//
// migration_0008.rs does `MODIFY COLUMN errors Array(String)` directly,
// noting in a comment that the conversion is only safe because the
// original system never actually wrote to that column. This
// implementation can't make that same guarantee about every deployment
// it might run against, so per the documented fallback it adds a new
// errors_list column instead of converting the existing errors column in
// place, and leaves errors untouched and unused going forward.
type ErrorsColumn struct {
	Client *store.Client
}

var _ migrate.Migration = (*ErrorsColumn)(nil)

func (m *ErrorsColumn) Name() string { return "0005_errors_column" }

func (m *ErrorsColumn) CanApply(ctx context.Context) error {
	exists, err := tableExists(ctx, m.Client, "BatchRequest")
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("table BatchRequest does not exist")
	}

	return nil
}

func (m *ErrorsColumn) ShouldApply(ctx context.Context) (bool, error) {
	for _, column := range []string{"raw_request", "raw_response", "function_name", "variant_name", "errors_list"} {
		exists, err := columnExists(ctx, m.Client, "BatchRequest", column)
		if err != nil {
			return false, err
		}

		if !exists {
			return true, nil
		}
	}

	for table, column := range map[string]string{
		"ModelInference": "response_time_ms",
		"ChatInference":  "processing_time_ms",
		"JsonInference":  "processing_time_ms",
	} {
		typ, err := columnType(ctx, m.Client, table, column)
		if err != nil {
			return false, err
		}

		if typ != "Nullable(UInt32)" {
			return true, nil
		}
	}

	return false, nil
}

func (m *ErrorsColumn) Apply(ctx context.Context, cleanStart bool) error {
	statements := []string{
		`ALTER TABLE BatchRequest
			ADD COLUMN IF NOT EXISTS raw_request String,
			ADD COLUMN IF NOT EXISTS raw_response String,
			ADD COLUMN IF NOT EXISTS function_name LowCardinality(String),
			ADD COLUMN IF NOT EXISTS variant_name LowCardinality(String),
			ADD COLUMN IF NOT EXISTS errors_list Array(String) DEFAULT []`,

		`ALTER TABLE ModelInference MODIFY COLUMN response_time_ms Nullable(UInt32)`,
		`ALTER TABLE ChatInference MODIFY COLUMN processing_time_ms Nullable(UInt32)`,
		`ALTER TABLE JsonInference MODIFY COLUMN processing_time_ms Nullable(UInt32)`,
	}

	for _, stmt := range statements {
		if err := m.Client.Exec(ctx, stmt, nil); err != nil {
			return err
		}
	}

	return nil
}

func (m *ErrorsColumn) HasSucceeded(ctx context.Context) (bool, error) {
	should, err := m.ShouldApply(ctx)
	if err != nil {
		return false, err
	}

	return !should, nil
}

func (m *ErrorsColumn) RollbackInstructions() string {
	return "" +
		"ALTER TABLE ModelInference MODIFY COLUMN response_time_ms UInt32;\n" +
		"ALTER TABLE ChatInference MODIFY COLUMN processing_time_ms UInt32;\n" +
		"ALTER TABLE JsonInference MODIFY COLUMN processing_time_ms UInt32;\n" +
		"ALTER TABLE BatchRequest\n" +
		"  DROP COLUMN raw_request,\n" +
		"  DROP COLUMN raw_response,\n" +
		"  DROP COLUMN function_name,\n" +
		"  DROP COLUMN variant_name,\n" +
		"  DROP COLUMN errors_list;\n"
}
