// internal/database/querier.go
package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github-issue-sentiment/internal/model"
)

type Querier interface {
	AdvanceWatermark(ctx context.Context, arg AdvanceWatermarkParams) (time.Time, error)
	CreateJob(ctx context.Context, repo string) (model.Job, error)
	DeleteJob(ctx context.Context, id uuid.UUID) (int64, error)
	GetIssueByNumber(ctx context.Context, arg GetIssueByNumberParams) (model.Issue, error)
	GetJob(ctx context.Context, id uuid.UUID) (model.Job, error)
	GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error)
	ListCommentsByIssue(ctx context.Context, issueID int64) ([]model.Comment, error)
	ListIssuesByRepo(ctx context.Context, repoID int64) ([]model.Issue, error)
	ListPendingJobs(ctx context.Context, limit int32) ([]model.Job, error)
	RequeueJob(ctx context.Context, id uuid.UUID) (int64, error)
	UpsertComment(ctx context.Context, arg model.Comment) error
	UpsertIssue(ctx context.Context, arg model.Issue) error
	UpsertRepository(ctx context.Context, arg model.Repository) error
	UpsertUser(ctx context.Context, arg model.User) error
}

var _ Querier = (*Queries)(nil)
