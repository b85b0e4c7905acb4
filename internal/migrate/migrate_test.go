package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigration struct {
	name         string
	canApplyErr  error
	shouldApply  bool
	shouldErr    error
	applyErr     error
	succeeded    bool
	succeededErr error
	applyCalls   int
}

func (f *fakeMigration) Name() string { return f.name }

func (f *fakeMigration) CanApply(ctx context.Context) error { return f.canApplyErr }

func (f *fakeMigration) ShouldApply(ctx context.Context) (bool, error) {
	return f.shouldApply, f.shouldErr
}

func (f *fakeMigration) Apply(ctx context.Context, cleanStart bool) error {
	f.applyCalls++
	return f.applyErr
}

func (f *fakeMigration) HasSucceeded(ctx context.Context) (bool, error) {
	return f.succeeded, f.succeededErr
}

func (f *fakeMigration) RollbackInstructions() string { return "-- rollback " + f.name }

func TestManagerRunsMigrationsInOrder(t *testing.T) {
	first := &fakeMigration{name: "first", shouldApply: true, succeeded: true}
	second := &fakeMigration{name: "second", shouldApply: true, succeeded: true}

	mgr := NewManager(false, first, second)
	require.NoError(t, mgr.Run(context.Background()))

	assert.Equal(t, 1, first.applyCalls)
	assert.Equal(t, 1, second.applyCalls)
}

func TestManagerSkipsMigrationThatShouldNotApply(t *testing.T) {
	m := &fakeMigration{name: "skip-me", shouldApply: false}

	mgr := NewManager(false, m)
	require.NoError(t, mgr.Run(context.Background()))

	assert.Zero(t, m.applyCalls)
}

func TestManagerAbortsOnCanApplyFailure(t *testing.T) {
	first := &fakeMigration{name: "broken", canApplyErr: errors.New("missing table")}
	second := &fakeMigration{name: "never-reached", shouldApply: true, succeeded: true}

	mgr := NewManager(false, first, second)
	err := mgr.Run(context.Background())

	require.Error(t, err)
	assert.Zero(t, second.applyCalls)
}

func TestManagerAbortsOnApplyFailure(t *testing.T) {
	first := &fakeMigration{name: "bad-apply", shouldApply: true, applyErr: errors.New("ddl rejected")}
	second := &fakeMigration{name: "never-reached", shouldApply: true, succeeded: true}

	mgr := NewManager(false, first, second)
	err := mgr.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, first.applyCalls)
	assert.Zero(t, second.applyCalls)
}

func TestManagerFailsWhenPostApplyCheckStillReportsNeeded(t *testing.T) {
	m := &fakeMigration{name: "never-settles", shouldApply: true, succeeded: false}

	mgr := NewManager(false, m)
	err := mgr.Run(context.Background())

	require.Error(t, err)
}

func TestManagerThreadsCleanStartToEveryMigration(t *testing.T) {
	var seen []bool

	m := &recordingMigration{fakeMigration: fakeMigration{name: "records", shouldApply: true, succeeded: true}, seen: &seen}

	mgr := NewManager(true, m)
	require.NoError(t, mgr.Run(context.Background()))

	require.Len(t, seen, 1)
	assert.True(t, seen[0])
}

type recordingMigration struct {
	fakeMigration
	seen *[]bool
}

func (r *recordingMigration) Apply(ctx context.Context, cleanStart bool) error {
	*r.seen = append(*r.seen, cleanStart)
	return r.fakeMigration.Apply(ctx, cleanStart)
}
