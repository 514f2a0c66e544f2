// internal/jobfeed/watcher.go
package jobfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	custom_errors "github-issue-sentiment/internal/errors"
	"github-issue-sentiment/internal/model"
	"github-issue-sentiment/internal/syncer"
)

// Syncer syncs one repository.
type Syncer interface {
	Sync(ctx context.Context, repo string) (*syncer.Result, error)
}

// Watcher consumes the job feed and runs one sync at a time, in feed order.
type Watcher struct {
	source    Source
	syncer    Syncer
	queueSize int
	logger    *slog.Logger

	// resync is set when the queue no longer reflects the feed: a notification
	// was dropped, or a job left the window and the next one has not been read.
	resync atomic.Bool
}

func NewWatcher(source Source, s Syncer, queueSize int, logger *slog.Logger) *Watcher {
	return &Watcher{
		source:    source,
		syncer:    s,
		queueSize: max(queueSize, 1),
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled or the feed fails.
//
// Receipt of notifications never waits on a sync: changes go into a bounded
// queue and, when it is full, are dropped in favour of re-reading the feed
// window once the queue has drained. The window is also re-read after a job is
// deleted or requeued, so pending jobs beyond the initial window are reached.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("Starting job watcher", "queue_size", w.queueSize)

	changes, errc := w.source.Changes(ctx)
	queue := make(chan Change, w.queueSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case c, ok := <-changes:
				if !ok {
					err := <-errc
					switch {
					case ctx.Err() != nil:
						return nil
					case err != nil:
						return fmt.Errorf("job feed: %w", err)
					default:
						return errors.New("job feed closed")
					}
				}
				w.enqueue(queue, c)
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case c := <-queue:
				w.handle(gctx, c)
			case <-gctx.Done():
				return nil
			}
			if len(queue) == 0 && w.resync.Swap(false) {
				w.refill(gctx, queue)
			}
		}
	})

	err := g.Wait()
	w.logger.Info("Job watcher stopped", "reason", context.Cause(gctx))
	return err
}

func (w *Watcher) enqueue(queue chan<- Change, c Change) bool {
	select {
	case queue <- c:
		return true
	default:
		if !w.resync.Swap(true) {
			w.logger.Warn("Job queue full, dropping notifications until it drains", "queue_size", cap(queue))
		}
		return false
	}
}

// refill re-reads the feed window. Jobs already processed are filtered out
// by handle, so overlap with queued notifications is harmless.
func (w *Watcher) refill(ctx context.Context, queue chan<- Change) {
	snapshot, err := w.source.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to re-read job feed", "error", err)
			w.resync.Store(true)
		}
		return
	}
	w.logger.Debug("Re-read job feed", "jobs", len(snapshot))
	for _, c := range snapshot {
		if !w.enqueue(queue, c) {
			return
		}
	}
}

func (w *Watcher) handle(ctx context.Context, c Change) {
	switch c.Type {
	case TypeInitial, TypeAdd, TypeChange:
	case TypeRemove:
		w.resync.Store(true)
		w.logger.Info("Skipping job change", "type", c.Type)
		return
	default:
		w.logger.Info("Skipping job change", "type", c.Type)
		return
	}

	job, err := decodeJob(c.NewVal)
	if err != nil {
		w.logger.Warn("Skipping job change", "type", c.Type, "payload", string(c.NewVal), "error", err)
		return
	}
	logger := w.logger.With("job_id", job.ID, "repo", job.Repo)

	exists, err := w.source.Exists(ctx, job.ID)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Failed to look up job", "error", err)
			w.resync.Store(true)
		}
		return
	}
	if !exists {
		logger.Info("Job already processed, skipping")
		return
	}

	logger.Info("Processing job")
	start := time.Now()
	res, err := w.syncer.Sync(ctx, job.Repo)
	logger = logger.With("duration", time.Since(start).String())

	switch {
	case ctx.Err() != nil:
		logger.Info("Sync interrupted, job left for the next start")
		return
	case err != nil && !handled(err):
		logger.Warn("Sync did not complete, requeueing job", "error", err)
		if err := w.source.Requeue(ctx, job.ID); err != nil {
			logger.Error("Failed to requeue job", "error", err)
		}
		w.resync.Store(true)
		return
	case err != nil:
		logger.Warn("Sync failed permanently, removing job", "error", err)
	default:
		logger.Info("Job complete", "issues", res.Issues, "comments", res.Comments, "dropped", res.Dropped)
	}

	if err := w.source.Delete(ctx, job.ID); err != nil {
		logger.Error("Failed to delete job", "error", err)
	}
	w.resync.Store(true)
}

// handled reports whether retrying the job cannot change the outcome.
func handled(err error) bool {
	var (
		formatErr *custom_errors.ErrInvalidRepoFormat
		vErr      *custom_errors.ValidationError
	)
	return errors.As(err, &formatErr) || errors.As(err, &vErr)
}

// decodeJob is the structural check applied to every accepted change.
func decodeJob(raw json.RawMessage) (model.Job, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return model.Job{}, &custom_errors.ErrMalformedJob{Reason: "no job in change"}
	}
	var job model.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return model.Job{}, &custom_errors.ErrMalformedJob{Reason: err.Error()}
	}
	if job.ID == uuid.Nil {
		return model.Job{}, &custom_errors.ErrMalformedJob{Reason: "missing id"}
	}
	if strings.TrimSpace(job.Repo) == "" {
		return model.Job{}, &custom_errors.ErrMalformedJob{Reason: "missing repo"}
	}
	return job, nil
}
