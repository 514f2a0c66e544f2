// internal/database/databasetest/mock_querier.go
package databasetest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github-issue-sentiment/internal/database"
	"github-issue-sentiment/internal/model"
)

// MockQuerier is a mock of the database.Querier interface.
type MockQuerier struct {
	mock.Mock
}

var _ database.Querier = (*MockQuerier)(nil)

func (m *MockQuerier) AdvanceWatermark(ctx context.Context, arg database.AdvanceWatermarkParams) (time.Time, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(time.Time), args.Error(1)
}
func (m *MockQuerier) CreateJob(ctx context.Context, repo string) (model.Job, error) {
	args := m.Called(ctx, repo)
	return args.Get(0).(model.Job), args.Error(1)
}
func (m *MockQuerier) DeleteJob(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) GetIssueByNumber(ctx context.Context, arg database.GetIssueByNumberParams) (model.Issue, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Issue), args.Error(1)
}
func (m *MockQuerier) GetJob(ctx context.Context, id uuid.UUID) (model.Job, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Job), args.Error(1)
}
func (m *MockQuerier) GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error) {
	args := m.Called(ctx, fullName)
	return args.Get(0).(model.Repository), args.Error(1)
}
func (m *MockQuerier) ListCommentsByIssue(ctx context.Context, issueID int64) ([]model.Comment, error) {
	args := m.Called(ctx, issueID)
	return args.Get(0).([]model.Comment), args.Error(1)
}
func (m *MockQuerier) ListIssuesByRepo(ctx context.Context, repoID int64) ([]model.Issue, error) {
	args := m.Called(ctx, repoID)
	return args.Get(0).([]model.Issue), args.Error(1)
}
func (m *MockQuerier) ListPendingJobs(ctx context.Context, limit int32) ([]model.Job, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]model.Job), args.Error(1)
}
func (m *MockQuerier) RequeueJob(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) UpsertComment(ctx context.Context, arg model.Comment) error {
	return m.Called(ctx, arg).Error(0)
}
func (m *MockQuerier) UpsertIssue(ctx context.Context, arg model.Issue) error {
	return m.Called(ctx, arg).Error(0)
}
func (m *MockQuerier) UpsertRepository(ctx context.Context, arg model.Repository) error {
	return m.Called(ctx, arg).Error(0)
}
func (m *MockQuerier) UpsertUser(ctx context.Context, arg model.User) error {
	return m.Called(ctx, arg).Error(0)
}
