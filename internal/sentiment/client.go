// internal/sentiment/client.go
package sentiment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github-issue-sentiment/internal/kv"
	"github-issue-sentiment/internal/model"
)

const (
	analyzePath    = "/analyze"
	defaultTimeout = 30 * time.Second
	maxBodyLog     = 512
)

// Client calls the external sentiment classifier.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *slog.Logger

	cache    kv.Store
	cacheTTL time.Duration
}

type Option func(*Client)

// WithToken sends the token as a Bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the default client, e.g. to trust a private CA.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache remembers results for identical texts for ttl.
func WithCache(store kv.Store, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// NewClient creates a classifier client for the service at baseURL.
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + analyzePath,
		http:     &http.Client{Timeout: defaultTimeout},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// Analyze scores text. It returns nil when no sentiment is available; a
// classifier outage degrades the record instead of failing the sync.
func (c *Client) Analyze(ctx context.Context, text string) *model.Sentiment {
	key := cacheKey(text)
	if s := c.cached(ctx, key); s != nil {
		return s
	}

	s, err := c.analyze(ctx, text)
	if err != nil {
		c.logger.Error("Sentiment could not be retrieved", "error", err, "text", truncate(text))
		return nil
	}

	c.store(ctx, key, s)
	return s
}

func (c *Client) analyze(ctx context.Context, text string) (*model.Sentiment, error) {
	payload, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog))
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var s model.Sentiment
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("classifier response out of contract: %w", err)
	}
	return &s, nil
}

func (c *Client) cached(ctx context.Context, key string) *model.Sentiment {
	if c.cache == nil {
		return nil
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.logger.Warn("Sentiment cache read failed", "error", err)
		}
		return nil
	}
	var s model.Sentiment
	if err := json.Unmarshal(raw, &s); err != nil || s.Validate() != nil {
		c.logger.Warn("Ignoring unreadable sentiment cache entry", "key", key)
		return nil
	}
	return &s
}

func (c *Client) store(ctx context.Context, key string, s *model.Sentiment) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
		c.logger.Warn("Sentiment cache write failed", "error", err)
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "sentiment:" + hex.EncodeToString(sum[:])
}

func truncate(s string) string {
	if len(s) <= maxBodyLog {
		return s
	}
	return s[:maxBodyLog] + "..."
}
