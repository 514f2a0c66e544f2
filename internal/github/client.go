// internal/github/client.go
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "github-issue-sentiment/internal/errors"
	"github-issue-sentiment/internal/model"
)

const (
	defaultMaxRetries = 5
	defaultRetryDelay = 5 * time.Second
	defaultPerPage    = 100
	maxRetryDelay     = 2 * time.Minute
	maxLoggedBody     = 64 << 10

	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
)

// Client is a wrapper around the go-github client that survives rate limits
// and transient upstream failures.
type Client struct {
	gh         *github.Client
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
	perPage    int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid GitHub base URL %q: %w", raw, err)
		}
		c.gh.BaseURL = u
		c.gh.UploadURL = u
		return nil
	}
}

// WithRetry sets the attempt bound and the first delay for non-quota failures.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) error {
		if maxRetries < 1 {
			return fmt.Errorf("max retries must be at least 1, got %d", maxRetries)
		}
		c.maxRetries = maxRetries
		c.retryDelay = delay
		return nil
	}
}

func WithPerPage(n int) Option {
	return func(c *Client) error {
		c.perPage = n
		return nil
	}
}

// NewClient creates and configures a new Client instance.
// A non-empty token is used to create an authenticated http.Client; without
// one the client calls the API anonymously under the lower rate limit.
func NewClient(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	httpClient := &http.Client{Timeout: 60 * time.Second}
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = 60 * time.Second
	}

	c := &Client{
		gh:         github.NewClient(httpClient),
		logger:     logger,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		perPage:    defaultPerPage,
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// GetRepository fetches repository details and translates them to our internal model.
// The returned repository has no watermark yet.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.Repository, *model.User, error) {
	var repo *github.Repository
	err := c.call(ctx, "get repository "+owner+"/"+name, func(ctx context.Context) (*github.Response, error) {
		r, resp, err := c.gh.Repositories.Get(ctx, owner, name)
		repo = r
		return resp, err
	})
	if err != nil {
		return nil, nil, err
	}
	r, u := toInternalRepository(repo)
	return &r, &u, nil
}

// ListIssues fetches one page of issues and pull requests updated at or after
// since, oldest update first. A zero since lists the full history.
func (c *Client) ListIssues(ctx context.Context, owner, name string, since time.Time, page int) (*Page[*github.Issue], error) {
	opts := &github.IssueListByRepoOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "asc",
		Since:     since,
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: c.perPage,
		},
	}

	c.logger.Debug("Fetching issues page", "owner", owner, "repo", name, "page", page, "since", since)

	var (
		issues []*github.Issue
		next   int
	)
	err := c.call(ctx, fmt.Sprintf("list issues %s/%s page %d", owner, name, page), func(ctx context.Context) (*github.Response, error) {
		items, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
		if err == nil {
			issues, next = items, resp.NextPage
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return &Page[*github.Issue]{Items: issues, NextPage: next}, nil
}

// ListComments fetches one page of comments on an issue, oldest first.
func (c *Client) ListComments(ctx context.Context, owner, name string, number, page int) (*Page[*github.IssueComment], error) {
	opts := &github.IssueListCommentsOptions{
		Sort:      github.String("created"),
		Direction: github.String("asc"),
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: c.perPage,
		},
	}

	var (
		comments []*github.IssueComment
		next     int
	)
	err := c.call(ctx, fmt.Sprintf("list comments %s/%s#%d page %d", owner, name, number, page), func(ctx context.Context) (*github.Response, error) {
		items, resp, err := c.gh.Issues.ListComments(ctx, owner, name, number, opts)
		if err == nil {
			comments, next = items, resp.NextPage
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return &Page[*github.IssueComment]{Items: comments, NextPage: next}, nil
}

// call runs fn until it succeeds. Quota exhaustion waits for the advertised
// reset and does not count as an attempt; every other failure is retried with
// exponential backoff until maxRetries attempts have been made.
//
// go-github remembers the last quota it saw and refuses requests locally until
// the reset passes. That refusal is a RateLimitError too, so it waits the same way.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) (*github.Response, error)) error {
	bo := c.newBackOff()
	start := c.now()
	attempts := 0
	for {
		resp, err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if wait, ok := quotaWait(err, resp, c.now()); ok {
			c.logger.Info("Rate limit hit, waiting for reset", "op", op, "wait", wait.String())
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		attempts++
		c.logFailure(op, attempts, resp, err)
		if attempts >= c.maxRetries {
			return &custom_errors.ErrSyncPaused{Op: op, Attempts: attempts, Elapsed: c.now().Sub(start), Err: err}
		}
		if err := c.sleep(ctx, bo.NextBackOff()); err != nil {
			return err
		}
	}
}

func (c *Client) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	bo.MaxInterval = max(maxRetryDelay, c.retryDelay)
	bo.MaxElapsedTime = 0 // bounded by maxRetries instead
	bo.Reset()
	return bo
}

func (c *Client) logFailure(op string, attempt int, resp *github.Response, err error) {
	attrs := []any{"op", op, "attempt", attempt, "max_attempts", c.maxRetries, "error", err}

	var ghErr *github.ErrorResponse
	var urlErr *url.Error
	switch {
	case errors.As(err, &ghErr) && ghErr.Response != nil:
		r := ghErr.Response
		if r.Request != nil {
			attrs = append(attrs, "url", r.Request.URL.String())
		}
		attrs = append(attrs, "status", r.StatusCode, "headers", r.Header, "body", readBody(r))
		if len(ghErr.Errors) > 0 {
			attrs = append(attrs, "errors", ghErr.Errors)
		}
	case resp != nil && resp.Response != nil:
		if resp.Request != nil {
			attrs = append(attrs, "url", resp.Request.URL.String())
		}
		attrs = append(attrs, "status", resp.StatusCode, "headers", resp.Header)
	case errors.As(err, &urlErr):
		attrs = append(attrs, "url", urlErr.URL)
	}

	c.logger.Error("GitHub API call failed", attrs...)
}

// readBody returns the raw error payload. go-github puts the body back after
// decoding it, so it is still readable here.
func readBody(r *http.Response) string {
	if r.Body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return string(data)
}

// quotaWait reports how long to pause when err means the request budget is spent.
func quotaWait(err error, resp *github.Response, now time.Time) (time.Duration, bool) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return untilReset(rateErr.Rate.Reset.Time, now), true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil {
		return max(*abuseErr.RetryAfter, 0), true
	}

	if resp != nil && resp.Response != nil && resp.Header.Get(headerRateRemaining) == "0" {
		reset, perr := strconv.ParseInt(resp.Header.Get(headerRateReset), 10, 64)
		if perr == nil {
			return untilReset(time.Unix(reset, 0), now), true
		}
	}
	return 0, false
}

// untilReset rounds up to whole seconds, matching the header's resolution.
func untilReset(reset, now time.Time) time.Duration {
	d := reset.Sub(now)
	if d <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// toInternalRepository translates a github.Repository object to our internal model.
func toInternalRepository(r *github.Repository) (model.Repository, model.User) {
	owner := model.User{
		ID:    r.GetOwner().GetID(),
		Login: r.GetOwner().GetLogin(),
	}
	return model.Repository{
		ID:       r.GetID(),
		UserID:   owner.ID,
		FullName: r.GetFullName(),
	}, owner
}
