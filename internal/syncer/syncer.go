// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"

	custom_errors "github-issue-sentiment/internal/errors"
	"github-issue-sentiment/internal/github"
	"github-issue-sentiment/internal/model"
	"github-issue-sentiment/internal/normalizer"
	"github-issue-sentiment/internal/store"
)

// RepoIdentifier holds the owner and name of a repository.
type RepoIdentifier struct {
	Owner string
	Name  string
}

func (r RepoIdentifier) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoIdentifier splits an "owner/name" string.
func ParseRepoIdentifier(repo string) (RepoIdentifier, error) {
	parts := strings.Split(strings.TrimSpace(repo), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoIdentifier{}, &custom_errors.ErrInvalidRepoFormat{Repo: repo}
	}
	return RepoIdentifier{Owner: parts[0], Name: parts[1]}, nil
}

// GitHubClient is the subset of the rate-limited client the syncer drives.
type GitHubClient interface {
	GetRepository(ctx context.Context, owner, name string) (*model.Repository, *model.User, error)
	ListIssues(ctx context.Context, owner, name string, since time.Time, page int) (*github.Page[*gh.Issue], error)
}

type IssueNormalizer interface {
	Issue(ctx context.Context, repo model.Repository, raw *gh.Issue) (*normalizer.IssueBundle, error)
}

type Store interface {
	GetRepository(ctx context.Context, fullName string) (model.Repository, error)
	InTx(ctx context.Context, fn func(w store.Writer) error) error
}

// Result summarizes one sync run.
type Result struct {
	Repo      string
	Created   bool
	Issues    int
	Comments  int
	Dropped   int
	Watermark time.Time
}

// Syncer brings the stored copy of a repository's issues up to date.
type Syncer struct {
	store      Store
	ghClient   GitHubClient
	normalizer IssueNormalizer
	logger     *slog.Logger
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(st Store, ghClient GitHubClient, norm IssueNormalizer, logger *slog.Logger) *Syncer {
	return &Syncer{
		store:      st,
		ghClient:   ghClient,
		normalizer: norm,
		logger:     logger,
	}
}

// syncState is resolved once at the start of a run and read-only afterwards.
type syncState struct {
	repo model.Repository
	// since is zero when the full history must be listed.
	since time.Time
}

// Sync fetches every issue updated at or after the stored watermark and
// stores it with its comments, one transaction per issue.
//
// The watermark only moves forward, and only past issues that were stored.
// Once an issue is dropped the rest of the run still stores issues but leaves
// the watermark where it was, so the next run lists the dropped issue again.
func (s *Syncer) Sync(ctx context.Context, repo string) (*Result, error) {
	id, err := ParseRepoIdentifier(repo)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("owner", id.Owner, "repo", id.Name)

	state, created, err := s.resume(ctx, logger, id)
	if err != nil {
		return nil, err
	}
	logger = logger.With("repo_id", state.repo.ID)

	res := &Result{Repo: id.String(), Created: created, Watermark: state.repo.LastUpdateDt}
	blocked := false

	err = github.Paginate(ctx, func(ctx context.Context, page int) (*github.Page[*gh.Issue], error) {
		return s.ghClient.ListIssues(ctx, id.Owner, id.Name, state.since, page)
	}, func(raw *gh.Issue) error {
		bundle, err := s.normalizer.Issue(ctx, state.repo, raw)
		if err != nil {
			return err
		}

		out, err := s.storeIssue(ctx, state, bundle, !blocked)
		var vErr *custom_errors.ValidationError
		if errors.As(err, &vErr) {
			res.Dropped++
			if !blocked {
				logger.Warn("Holding watermark for the rest of this run", "number", bundle.Issue.Number, "watermark", res.Watermark)
			}
			blocked = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("store issue #%d: %w", bundle.Issue.Number, err)
		}

		res.Issues++
		res.Comments += out.comments
		res.Dropped += out.dropped
		if !blocked {
			res.Watermark = out.watermark
		}
		logger.Debug("Stored issue", "number", bundle.Issue.Number, "comments", out.comments, "dropped_comments", out.dropped)
		return nil
	})
	if err != nil {
		logger.Error("Sync stopped", "issues", res.Issues, "watermark", res.Watermark, "error", err)
		return res, err
	}

	logger.Info("Repository synced",
		"issues", res.Issues,
		"comments", res.Comments,
		"dropped", res.Dropped,
		"watermark", res.Watermark.Format(time.RFC3339),
	)
	return res, nil
}

// resume reads the watermark, creating the repository record on first sight.
func (s *Syncer) resume(ctx context.Context, logger *slog.Logger, id RepoIdentifier) (syncState, bool, error) {
	repo, err := s.store.GetRepository(ctx, id.String())
	if err == nil {
		logger.Info("Syncing issues updated since watermark", "since", repo.LastUpdateDt.Format(time.RFC3339))
		return syncState{repo: repo, since: repo.LastUpdateDt}, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return syncState{}, false, fmt.Errorf("read watermark: %w", err)
	}

	logger.Info("Repository not found in DB, creating new entry")
	meta, owner, err := s.ghClient.GetRepository(ctx, id.Owner, id.Name)
	if err != nil {
		return syncState{}, false, err
	}
	repo = *meta
	repo.LastUpdateDt = model.MinWatermark
	if repo.FullName == "" {
		repo.FullName = id.String()
	}

	err = s.store.InTx(ctx, func(w store.Writer) error {
		if err := w.UpsertUser(ctx, *owner); err != nil {
			return err
		}
		return w.UpsertRepository(ctx, repo)
	})
	if err != nil {
		return syncState{}, false, fmt.Errorf("create repository: %w", err)
	}
	return syncState{repo: repo}, true, nil
}

type stored struct {
	comments  int
	dropped   int
	watermark time.Time
}

// storeIssue writes one issue bundle in a single transaction. Invalid comments
// and comments by invalid authors are dropped without failing the issue.
func (s *Syncer) storeIssue(ctx context.Context, state syncState, b *normalizer.IssueBundle, advance bool) (stored, error) {
	var out stored
	err := s.store.InTx(ctx, func(w store.Writer) error {
		out = stored{}
		if err := w.UpsertUser(ctx, b.Author); err != nil {
			return err
		}
		if err := w.UpsertIssue(ctx, b.Issue); err != nil {
			return err
		}
		for _, c := range b.Comments {
			err := w.UpsertUser(ctx, c.Author)
			if err == nil {
				err = w.UpsertComment(ctx, c.Comment)
			}
			if isValidation(err) {
				out.dropped++
				continue
			}
			if err != nil {
				return err
			}
			out.comments++
		}
		if !advance {
			return nil
		}
		wm, err := w.AdvanceWatermark(ctx, state.repo.ID, b.Issue.UpdatedAt)
		if err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}
		out.watermark = wm
		return nil
	})
	return out, err
}

func isValidation(err error) bool {
	var vErr *custom_errors.ValidationError
	return errors.As(err, &vErr)
}
