// internal/normalizer/normalizer.go
package normalizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gh "github.com/google/go-github/v62/github"

	"github-issue-sentiment/internal/github"
	"github-issue-sentiment/internal/model"
)

// Analyzer scores free text. A nil result means no sentiment is available.
type Analyzer interface {
	Analyze(ctx context.Context, text string) *model.Sentiment
}

// CommentLister fetches one page of an issue's comments.
type CommentLister interface {
	ListComments(ctx context.Context, owner, name string, number, page int) (*github.Page[*gh.IssueComment], error)
}

// IssueBundle is a normalized issue with everything that must be stored with it.
type IssueBundle struct {
	Author   model.User
	Issue    model.Issue
	Comments []CommentBundle
}

type CommentBundle struct {
	Author  model.User
	Comment model.Comment
}

// Normalizer turns provider payloads into enriched internal entities.
type Normalizer struct {
	comments CommentLister
	analyzer Analyzer
	logger   *slog.Logger
}

func New(comments CommentLister, analyzer Analyzer, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		comments: comments,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Issue normalizes raw and all of its comments. Errors come only from
// fetching comments; enrichment failures leave a nil sentiment behind.
func (n *Normalizer) Issue(ctx context.Context, repo model.Repository, raw *gh.Issue) (*IssueBundle, error) {
	b := &IssueBundle{
		Author: toUser(raw.GetUser()),
		Issue: model.Issue{
			ID:        raw.GetID(),
			RepoID:    repo.ID,
			UserID:    raw.GetUser().GetID(),
			Number:    raw.GetNumber(),
			State:     model.IssueState(raw.GetState()),
			IsPR:      raw.IsPullRequest(),
			Title:     n.text(ctx, raw.Title),
			Body:      n.text(ctx, raw.Body),
			UpdatedAt: raw.GetUpdatedAt().Time,
		},
	}

	// The listing reports a comment count; skip the request when it is zero.
	if raw.Comments != nil && *raw.Comments == 0 {
		return b, nil
	}

	owner, name, _ := strings.Cut(repo.FullName, "/")
	err := github.Paginate(ctx, func(ctx context.Context, page int) (*github.Page[*gh.IssueComment], error) {
		return n.comments.ListComments(ctx, owner, name, b.Issue.Number, page)
	}, func(c *gh.IssueComment) error {
		b.Comments = append(b.Comments, n.Comment(ctx, b.Issue.ID, c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch comments for #%d: %w", b.Issue.Number, err)
	}

	n.logger.Debug("Normalized issue", "repo", repo.FullName, "number", b.Issue.Number, "comments", len(b.Comments))
	return b, nil
}

// Comment normalizes a single comment belonging to issueID.
func (n *Normalizer) Comment(ctx context.Context, issueID int64, raw *gh.IssueComment) CommentBundle {
	return CommentBundle{
		Author: toUser(raw.GetUser()),
		Comment: model.Comment{
			ID:        raw.GetID(),
			IssueID:   issueID,
			UserID:    raw.GetUser().GetID(),
			Body:      n.text(ctx, raw.Body),
			UpdatedAt: raw.GetUpdatedAt().Time,
		},
	}
}

// text enriches a possibly absent field. Absent text is scored as "".
func (n *Normalizer) text(ctx context.Context, raw *string) model.Text {
	var s string
	if raw != nil {
		s = *raw
	}
	return model.Text{
		RawText:   s,
		Sentiment: n.analyzer.Analyze(ctx, s),
	}
}

func toUser(u *gh.User) model.User {
	return model.User{
		ID:    u.GetID(),
		Login: u.GetLogin(),
	}
}
