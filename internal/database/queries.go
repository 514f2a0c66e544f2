// internal/database/queries.go
package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github-issue-sentiment/internal/model"
)

const advanceWatermark = `
UPDATE repositories
SET last_update_dt = GREATEST(last_update_dt, $2), db_updated_at = now()
WHERE id = $1
RETURNING last_update_dt
`

type AdvanceWatermarkParams struct {
	ID           int64
	LastUpdateDt time.Time
}

// AdvanceWatermark moves the watermark forward and never back.
func (q *Queries) AdvanceWatermark(ctx context.Context, arg AdvanceWatermarkParams) (time.Time, error) {
	row := q.db.QueryRow(ctx, advanceWatermark, arg.ID, arg.LastUpdateDt)
	var lastUpdateDt time.Time
	err := row.Scan(&lastUpdateDt)
	return lastUpdateDt, err
}

const createJob = `
INSERT INTO jobs (id, repo)
VALUES ($1, $2)
RETURNING id, repo, inserted_at
`

func (q *Queries) CreateJob(ctx context.Context, repo string) (model.Job, error) {
	row := q.db.QueryRow(ctx, createJob, uuid.New(), repo)
	var i model.Job
	err := row.Scan(&i.ID, &i.Repo, &i.InsertedAt)
	return i, err
}

const deleteJob = `
DELETE FROM jobs WHERE id = $1
`

func (q *Queries) DeleteJob(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteJob, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getJob = `
SELECT id, repo, inserted_at FROM jobs WHERE id = $1
`

func (q *Queries) GetJob(ctx context.Context, id uuid.UUID) (model.Job, error) {
	row := q.db.QueryRow(ctx, getJob, id)
	var i model.Job
	err := row.Scan(&i.ID, &i.Repo, &i.InsertedAt)
	return i, err
}

const listPendingJobs = `
SELECT id, repo, inserted_at FROM jobs
ORDER BY inserted_at, id
LIMIT $1
`

func (q *Queries) ListPendingJobs(ctx context.Context, limit int32) ([]model.Job, error) {
	rows, err := q.db.Query(ctx, listPendingJobs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Job
	for rows.Next() {
		var i model.Job
		if err := rows.Scan(&i.ID, &i.Repo, &i.InsertedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const requeueJob = `
UPDATE jobs
SET inserted_at = (extract(epoch FROM clock_timestamp()) * 1000)::BIGINT
WHERE id = $1
`

// RequeueJob moves a job to the back of the feed.
func (q *Queries) RequeueJob(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, requeueJob, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getRepositoryByFullName = `
SELECT id, user_id, full_name, last_update_dt FROM repositories
WHERE lower(full_name) = lower($1)
`

func (q *Queries) GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error) {
	row := q.db.QueryRow(ctx, getRepositoryByFullName, fullName)
	var i model.Repository
	err := row.Scan(&i.ID, &i.UserID, &i.FullName, &i.LastUpdateDt)
	return i, err
}

const upsertUser = `
INSERT INTO users (id, login)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE
SET login = EXCLUDED.login, db_updated_at = now()
`

func (q *Queries) UpsertUser(ctx context.Context, arg model.User) error {
	_, err := q.db.Exec(ctx, upsertUser, arg.ID, arg.Login)
	return err
}

const upsertRepository = `
INSERT INTO repositories (id, user_id, full_name, last_update_dt)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET user_id        = EXCLUDED.user_id,
    full_name      = EXCLUDED.full_name,
    last_update_dt = GREATEST(repositories.last_update_dt, EXCLUDED.last_update_dt),
    db_updated_at  = now()
`

func (q *Queries) UpsertRepository(ctx context.Context, arg model.Repository) error {
	_, err := q.db.Exec(ctx, upsertRepository, arg.ID, arg.UserID, arg.FullName, arg.LastUpdateDt)
	return err
}

const upsertIssue = `
INSERT INTO issues (id, repo_id, user_id, number, state, is_pr, title_text, title_sentiment, body_text, body_sentiment, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE
SET repo_id         = EXCLUDED.repo_id,
    user_id         = EXCLUDED.user_id,
    number          = EXCLUDED.number,
    state           = EXCLUDED.state,
    is_pr           = EXCLUDED.is_pr,
    title_text      = EXCLUDED.title_text,
    title_sentiment = EXCLUDED.title_sentiment,
    body_text       = EXCLUDED.body_text,
    body_sentiment  = EXCLUDED.body_sentiment,
    updated_at      = EXCLUDED.updated_at,
    db_updated_at   = now()
`

func (q *Queries) UpsertIssue(ctx context.Context, arg model.Issue) error {
	_, err := q.db.Exec(ctx, upsertIssue,
		arg.ID,
		arg.RepoID,
		arg.UserID,
		arg.Number,
		string(arg.State),
		arg.IsPR,
		arg.Title.RawText,
		arg.Title.Sentiment,
		arg.Body.RawText,
		arg.Body.Sentiment,
		arg.UpdatedAt,
	)
	return err
}

const upsertComment = `
INSERT INTO comments (id, issue_id, user_id, body_text, body_sentiment, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET issue_id       = EXCLUDED.issue_id,
    user_id        = EXCLUDED.user_id,
    body_text      = EXCLUDED.body_text,
    body_sentiment = EXCLUDED.body_sentiment,
    updated_at     = EXCLUDED.updated_at,
    db_updated_at  = now()
`

func (q *Queries) UpsertComment(ctx context.Context, arg model.Comment) error {
	var updatedAt *time.Time
	if !arg.UpdatedAt.IsZero() {
		updatedAt = &arg.UpdatedAt
	}
	_, err := q.db.Exec(ctx, upsertComment,
		arg.ID,
		arg.IssueID,
		arg.UserID,
		arg.Body.RawText,
		arg.Body.Sentiment,
		updatedAt,
	)
	return err
}

const issueColumns = `id, repo_id, user_id, number, state, is_pr, title_text, title_sentiment, body_text, body_sentiment, updated_at`

const listIssuesByRepo = `
SELECT ` + issueColumns + ` FROM issues
WHERE repo_id = $1
ORDER BY updated_at, id
`

func (q *Queries) ListIssuesByRepo(ctx context.Context, repoID int64) ([]model.Issue, error) {
	rows, err := q.db.Query(ctx, listIssuesByRepo, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getIssueByNumber = `
SELECT ` + issueColumns + ` FROM issues
WHERE repo_id = $1 AND number = $2
`

type GetIssueByNumberParams struct {
	RepoID int64
	Number int
}

func (q *Queries) GetIssueByNumber(ctx context.Context, arg GetIssueByNumberParams) (model.Issue, error) {
	return scanIssue(q.db.QueryRow(ctx, getIssueByNumber, arg.RepoID, arg.Number))
}

const listCommentsByIssue = `
SELECT id, issue_id, user_id, body_text, body_sentiment, updated_at FROM comments
WHERE issue_id = $1
ORDER BY id
`

func (q *Queries) ListCommentsByIssue(ctx context.Context, issueID int64) ([]model.Comment, error) {
	rows, err := q.db.Query(ctx, listCommentsByIssue, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Comment
	for rows.Next() {
		var (
			i         model.Comment
			updatedAt *time.Time
		)
		if err := rows.Scan(&i.ID, &i.IssueID, &i.UserID, &i.Body.RawText, &i.Body.Sentiment, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt != nil {
			i.UpdatedAt = *updatedAt
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanIssue(row pgx.Row) (model.Issue, error) {
	var (
		i     model.Issue
		state string
	)
	err := row.Scan(
		&i.ID,
		&i.RepoID,
		&i.UserID,
		&i.Number,
		&state,
		&i.IsPR,
		&i.Title.RawText,
		&i.Title.Sentiment,
		&i.Body.RawText,
		&i.Body.Sentiment,
		&i.UpdatedAt,
	)
	i.State = model.IssueState(state)
	return i, err
}
