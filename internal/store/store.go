// internal/store/store.go
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-issue-sentiment/internal/database"
	custom_errors "github-issue-sentiment/internal/errors"
	"github-issue-sentiment/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("store: not found")

// Writer validates entities before writing them. Every write is an upsert
// keyed by the entity id; an invalid entity yields *errors.ValidationError
// and is not written.
type Writer interface {
	UpsertUser(ctx context.Context, u model.User) error
	UpsertRepository(ctx context.Context, r model.Repository) error
	UpsertIssue(ctx context.Context, i model.Issue) error
	UpsertComment(ctx context.Context, c model.Comment) error
	AdvanceWatermark(ctx context.Context, repoID int64, to time.Time) (time.Time, error)
}

// Store is the validated persistence layer over Postgres.
type Store struct {
	pool   *pgxpool.Pool
	q      *database.Queries
	logger *slog.Logger
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, q: database.New(pool), logger: logger}
}

// GetRepository returns the stored repository, or ErrNotFound.
func (s *Store) GetRepository(ctx context.Context, fullName string) (model.Repository, error) {
	repo, err := s.q.GetRepositoryByFullName(ctx, fullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, ErrNotFound
	}
	return repo, err
}

// InTx runs fn in one transaction. Everything fn wrote is committed together
// when it returns nil and rolled back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(w Writer) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(NewTx(s.q.WithTx(tx), s.logger))
	})
}

// Tx is a Writer over a single querier, usually bound to a transaction.
type Tx struct {
	q      database.Querier
	logger *slog.Logger
}

func NewTx(q database.Querier, logger *slog.Logger) *Tx {
	return &Tx{q: q, logger: logger}
}

var _ Writer = (*Tx)(nil)

func (t *Tx) UpsertUser(ctx context.Context, u model.User) error {
	if err := u.Validate(); err != nil {
		return t.reject("user", u.ID, u, err)
	}
	return t.q.UpsertUser(ctx, u)
}

func (t *Tx) UpsertRepository(ctx context.Context, r model.Repository) error {
	if err := r.Validate(); err != nil {
		return t.reject("repository", r.ID, r, err)
	}
	return t.q.UpsertRepository(ctx, r)
}

func (t *Tx) UpsertIssue(ctx context.Context, i model.Issue) error {
	if err := i.Validate(); err != nil {
		return t.reject("issue", i.ID, i, err)
	}
	return t.q.UpsertIssue(ctx, i)
}

func (t *Tx) UpsertComment(ctx context.Context, c model.Comment) error {
	if err := c.Validate(); err != nil {
		return t.reject("comment", c.ID, c, err)
	}
	return t.q.UpsertComment(ctx, c)
}

// AdvanceWatermark returns the stored watermark, which is the later of its
// previous value and to.
func (t *Tx) AdvanceWatermark(ctx context.Context, repoID int64, to time.Time) (time.Time, error) {
	wm, err := t.q.AdvanceWatermark(ctx, database.AdvanceWatermarkParams{ID: repoID, LastUpdateDt: to})
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return wm, err
}

func (t *Tx) reject(entity string, id int64, record any, reason error) error {
	t.logger.Warn("Dropping invalid record", "entity", entity, "id", id, "reason", reason.Error(), "record", record)
	return &custom_errors.ValidationError{Entity: entity, ID: id, Reason: reason}
}
