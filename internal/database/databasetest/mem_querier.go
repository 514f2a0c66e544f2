// internal/database/databasetest/mem_querier.go
package databasetest

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github-issue-sentiment/internal/database"
	"github-issue-sentiment/internal/model"
)

// MemQuerier is an in-memory database.Querier with the same upsert and
// watermark semantics as the SQL queries.
type MemQuerier struct {
	mu sync.Mutex

	Users        map[int64]model.User
	Repositories map[int64]model.Repository
	Issues       map[int64]model.Issue
	Comments     map[int64]model.Comment
	Jobs         map[uuid.UUID]model.Job

	// FailUpsertIssue makes UpsertIssue fail for the given issue ids.
	FailUpsertIssue map[int64]error

	// Writes counts every successful mutating call.
	Writes int

	clock int64
}

var _ database.Querier = (*MemQuerier)(nil)

func NewMemQuerier() *MemQuerier {
	return &MemQuerier{
		Users:           map[int64]model.User{},
		Repositories:    map[int64]model.Repository{},
		Issues:          map[int64]model.Issue{},
		Comments:        map[int64]model.Comment{},
		Jobs:            map[uuid.UUID]model.Job{},
		FailUpsertIssue: map[int64]error{},
	}
}

// Snapshot captures the entity tables and returns a func that restores them,
// standing in for a transaction rollback.
func (m *MemQuerier) Snapshot() (restore func()) {
	m.mu.Lock()
	users, repos, issues, comments, writes := maps.Clone(m.Users), maps.Clone(m.Repositories), maps.Clone(m.Issues), maps.Clone(m.Comments), m.Writes
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.Users, m.Repositories, m.Issues, m.Comments, m.Writes = users, repos, issues, comments, writes
	}
}

func (m *MemQuerier) AdvanceWatermark(_ context.Context, arg database.AdvanceWatermarkParams) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Repositories[arg.ID]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	if arg.LastUpdateDt.After(r.LastUpdateDt) {
		r.LastUpdateDt = arg.LastUpdateDt
		m.Repositories[arg.ID] = r
	}
	m.Writes++
	return r.LastUpdateDt, nil
}

func (m *MemQuerier) CreateJob(_ context.Context, repo string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := model.Job{ID: uuid.New(), Repo: repo, InsertedAt: m.tick()}
	m.Jobs[job.ID] = job
	m.Writes++
	return job, nil
}

func (m *MemQuerier) DeleteJob(_ context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Jobs[id]; !ok {
		return 0, nil
	}
	delete(m.Jobs, id)
	m.Writes++
	return 1, nil
}

func (m *MemQuerier) GetIssueByNumber(_ context.Context, arg database.GetIssueByNumberParams) (model.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.Issues {
		if i.RepoID == arg.RepoID && i.Number == arg.Number {
			return i, nil
		}
	}
	return model.Issue{}, pgx.ErrNoRows
}

func (m *MemQuerier) GetJob(_ context.Context, id uuid.UUID) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[id]
	if !ok {
		return model.Job{}, pgx.ErrNoRows
	}
	return job, nil
}

func (m *MemQuerier) GetRepositoryByFullName(_ context.Context, fullName string) (model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Repositories {
		if strings.EqualFold(r.FullName, fullName) {
			return r, nil
		}
	}
	return model.Repository{}, pgx.ErrNoRows
}

func (m *MemQuerier) ListCommentsByIssue(_ context.Context, issueID int64) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Comment
	for _, c := range m.Comments {
		if c.IssueID == issueID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *MemQuerier) ListIssuesByRepo(_ context.Context, repoID int64) ([]model.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Issue
	for _, i := range m.Issues {
		if i.RepoID == repoID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].UpdatedAt.Equal(out[b].UpdatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].UpdatedAt.Before(out[b].UpdatedAt)
	})
	return out, nil
}

func (m *MemQuerier) ListPendingJobs(_ context.Context, limit int32) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := slices.Collect(maps.Values(m.Jobs))
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].InsertedAt < jobs[b].InsertedAt })
	if int(limit) < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (m *MemQuerier) RequeueJob(_ context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[id]
	if !ok {
		return 0, nil
	}
	job.InsertedAt = m.tick()
	m.Jobs[id] = job
	m.Writes++
	return 1, nil
}

func (m *MemQuerier) UpsertComment(_ context.Context, arg model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Comments[arg.ID] = arg
	m.Writes++
	return nil
}

func (m *MemQuerier) UpsertIssue(_ context.Context, arg model.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailUpsertIssue[arg.ID]; err != nil {
		return err
	}
	m.Issues[arg.ID] = arg
	m.Writes++
	return nil
}

func (m *MemQuerier) UpsertRepository(_ context.Context, arg model.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.Repositories[arg.ID]; ok && prev.LastUpdateDt.After(arg.LastUpdateDt) {
		arg.LastUpdateDt = prev.LastUpdateDt
	}
	m.Repositories[arg.ID] = arg
	m.Writes++
	return nil
}

func (m *MemQuerier) UpsertUser(_ context.Context, arg model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[arg.ID] = arg
	m.Writes++
	return nil
}

// tick returns a strictly increasing insertion time.
func (m *MemQuerier) tick() int64 {
	now := time.Now().UnixMilli()
	if now <= m.clock {
		now = m.clock + 1
	}
	m.clock = now
	return now
}
