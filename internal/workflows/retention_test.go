package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

type fakeFixRepo struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakeFixRepo) Insert(ctx context.Context, fix *domain.Fix) error { return nil }
func (f *fakeFixRepo) Latest(ctx context.Context, deviceID string) (*domain.Fix, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeFixRepo) History(ctx context.Context, deviceID string, offset, limit int) ([]domain.Fix, error) {
	return nil, nil
}
func (f *fakeFixRepo) Count(ctx context.Context, deviceID string) (int, error) { return 0, nil }
func (f *fakeFixRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

func TestRetentionWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	repo := &fakeFixRepo{n: 42}
	env.RegisterActivity(&RetentionActivities{Fixes: repo})

	env.ExecuteWorkflow(RetentionWorkflow, RetentionInput{MaxAge: 24 * time.Hour})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res RetentionResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, int64(42), res.Deleted)
	assert.WithinDuration(t, env.Now().Add(-24*time.Hour), repo.cutoff, time.Minute)
}

func TestRetentionWorkflow_ActivityFails(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&RetentionActivities{Fixes: &fakeFixRepo{err: errors.New("db down")}})

	env.ExecuteWorkflow(RetentionWorkflow, RetentionInput{MaxAge: time.Hour})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}
