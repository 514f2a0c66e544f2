// internal/jobfeed/feed.go
package jobfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-issue-sentiment/internal/database"
)

// Channel is the notification channel the jobs trigger publishes on.
const Channel = "job_changes"

type ChangeType string

const (
	TypeInitial ChangeType = "initial"
	TypeAdd     ChangeType = "add"
	TypeChange  ChangeType = "change"
	TypeRemove  ChangeType = "remove"
)

// Change is one entry of the job feed. NewVal holds the job row as JSON.
type Change struct {
	Type   ChangeType      `json:"type"`
	NewVal json.RawMessage `json:"new_val,omitempty"`
	OldVal json.RawMessage `json:"old_val,omitempty"`
}

// Source is an ordered, change-subscribable view of pending jobs.
type Source interface {
	// Changes emits the current window as initial changes followed by live
	// changes. The error channel yields once, after the change channel closes.
	Changes(ctx context.Context) (<-chan Change, <-chan error)
	Snapshot(ctx context.Context) ([]Change, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Requeue(ctx context.Context, id uuid.UUID) error
}

// PGSource is a Source over the jobs table and its LISTEN/NOTIFY trigger.
type PGSource struct {
	pool   *pgxpool.Pool
	q      database.Querier
	window int32
	logger *slog.Logger
}

var _ Source = (*PGSource)(nil)

func NewPGSource(pool *pgxpool.Pool, window int, logger *slog.Logger) *PGSource {
	return &PGSource{
		pool:   pool,
		q:      database.New(pool),
		window: int32(window),
		logger: logger,
	}
}

func (s *PGSource) Changes(ctx context.Context) (<-chan Change, <-chan error) {
	out := make(chan Change)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(out)
		errc <- s.listen(ctx, out)
	}()
	return out, errc
}

// listen holds one pooled connection for the lifetime of the subscription.
// LISTEN is issued before the snapshot is read so no insert falls in between.
func (s *PGSource) listen(ctx context.Context, out chan<- Change) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
	}()
	s.logger.Info("Listening for job changes", "channel", Channel, "window", s.window)

	initial, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, c := range initial {
		if err := send(ctx, out, c); err != nil {
			return nil
		}
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for job change: %w", err)
		}
		var c Change
		if err := json.Unmarshal([]byte(n.Payload), &c); err != nil {
			s.logger.Warn("Skipping unreadable job notification", "payload", n.Payload, "error", err)
			continue
		}
		if err := send(ctx, out, c); err != nil {
			return nil
		}
	}
}

func send(ctx context.Context, out chan<- Change, c Change) error {
	select {
	case out <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the oldest pending jobs, capped to the window.
func (s *PGSource) Snapshot(ctx context.Context) ([]Change, error) {
	jobs, err := s.q.ListPendingJobs(ctx, s.window)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	changes := make([]Change, 0, len(jobs))
	for _, j := range jobs {
		raw, err := json.Marshal(j)
		if err != nil {
			return nil, err
		}
		changes = append(changes, Change{Type: TypeInitial, NewVal: raw})
	}
	return changes, nil
}

func (s *PGSource) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.q.GetJob(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *PGSource) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.q.DeleteJob(ctx, id)
	return err
}

// Requeue moves the job behind every job inserted before now.
func (s *PGSource) Requeue(ctx context.Context, id uuid.UUID) error {
	_, err := s.q.RequeueJob(ctx, id)
	return err
}
