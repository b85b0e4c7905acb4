// Package migrate runs the analytical store's forward-only schema
// migrations. Each Migration owns its own precondition check, its own
// apply-needed check, and its own DDL — the Manager only sequences them,
// the way the teacher's internal/ent/migrate/datamigrate.Migrator sequences
// DataMigrator implementations.
package migrate

import (
	"context"
	"fmt"

	"github.com/looplj/tzcore/internal/log"
)

// Migration is a single forward-only schema change against the analytical
// store. There is no Down/rollback execution path — RollbackInstructions
// returns the SQL an operator would run by hand, it is never invoked by the
// Manager itself.
type Migration interface {
	// Name identifies the migration in logs and in HasSucceeded checks.
	Name() string

	// CanApply reports whether the migration's preconditions hold (e.g. the
	// tables it alters already exist). An error here aborts the run before
	// any DDL is issued.
	CanApply(ctx context.Context) error

	// ShouldApply reports whether the migration's target state is already
	// in place. False means skip.
	ShouldApply(ctx context.Context) (bool, error)

	// Apply performs the migration. cleanStart is true when applying against
	// a brand new database with no prior data — migrations that otherwise
	// need a backfill or a cutover wait can skip straight to the end state.
	Apply(ctx context.Context, cleanStart bool) error

	// HasSucceeded reports whether the migration's target state holds after
	// Apply returned. Used as a post-apply sanity check.
	HasSucceeded(ctx context.Context) (bool, error)

	// RollbackInstructions returns the SQL an operator can run to reverse
	// the migration by hand.
	RollbackInstructions() string
}

// Manager runs an ordered list of migrations, skipping any that report they
// don't need to apply and aborting the whole run on the first hard failure.
type Manager struct {
	migrations []Migration
	cleanStart bool
}

// NewManager builds a Manager over migrations in the order they must run.
// cleanStart is threaded through to every migration's Apply call.
func NewManager(cleanStart bool, migrations ...Migration) *Manager {
	return &Manager{migrations: migrations, cleanStart: cleanStart}
}

// Run executes every registered migration in order. A migration whose
// ShouldApply returns false is skipped. A migration whose CanApply or Apply
// fails aborts the run immediately, leaving later migrations unapplied.
func (m *Manager) Run(ctx context.Context) error {
	for _, migration := range m.migrations {
		name := migration.Name()

		if err := migration.CanApply(ctx); err != nil {
			return fmt.Errorf("migrate: %s: precondition failed: %w", name, err)
		}

		should, err := migration.ShouldApply(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %s: should-apply check failed: %w", name, err)
		}

		if !should {
			log.Info(ctx, "skipping migration, already applied", log.String("migration", name))
			continue
		}

		log.Info(ctx, "applying migration", log.String("migration", name), log.Bool("clean_start", m.cleanStart))

		if err := migration.Apply(ctx, m.cleanStart); err != nil {
			log.Error(ctx, "migration failed", log.String("migration", name), log.Cause(err))
			return fmt.Errorf("migrate: %s: apply failed: %w", name, err)
		}

		succeeded, err := migration.HasSucceeded(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %s: post-apply check failed: %w", name, err)
		}

		if !succeeded {
			return fmt.Errorf("migrate: %s: applied but post-apply check still reports it is needed", name)
		}

		log.Info(ctx, "completed migration", log.String("migration", name))
	}

	return nil
}
