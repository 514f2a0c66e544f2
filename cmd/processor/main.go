// cmd/processor/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github-issue-sentiment/internal/api"
	"github-issue-sentiment/internal/config"
	"github-issue-sentiment/internal/database"
	"github-issue-sentiment/internal/github"
	"github-issue-sentiment/internal/jobfeed"
	"github-issue-sentiment/internal/kv"
	"github-issue-sentiment/internal/normalizer"
	"github-issue-sentiment/internal/sentiment"
	"github-issue-sentiment/internal/store"
	"github-issue-sentiment/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.MigrationsPath, cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	processor, err := newProcessor(ctx, cfg, dbpool, logger)
	if err != nil {
		return err
	}
	defer processor.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.watcher.Run(gctx)
	})
	if cfg.APIAddr != "" {
		srv := &http.Server{
			Addr:              cfg.APIAddr,
			Handler:           api.NewRouter(database.New(dbpool), logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("API listening", "addr", cfg.APIAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// 6. Wait for shutdown signal or a component failure
	logger.Info("Application started. Waiting for shutdown signal...")
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown signal received. Exiting.")
	return nil
}

type processor struct {
	watcher *jobfeed.Watcher
	cache   kv.Store
}

func (p *processor) Close() {
	if p.cache != nil {
		_ = p.cache.Close()
	}
}

// newProcessor wires the sync pipeline: job feed, syncer, GitHub and
// sentiment clients, and the validated store.
func newProcessor(ctx context.Context, cfg *config.Config, dbpool *pgxpool.Pool, logger *slog.Logger) (*processor, error) {
	ghOpts := []github.Option{
		github.WithRetry(cfg.GithubMaxRetries, cfg.GithubRetryDelay),
		github.WithPerPage(cfg.IssuesPerPage),
	}
	if cfg.GithubAPIURL != "" {
		ghOpts = append(ghOpts, github.WithBaseURL(cfg.GithubAPIURL))
	}
	ghClient, err := github.NewClient(cfg.GithubToken, logger, ghOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create github client: %w", err)
	}

	p := &processor{}
	sentimentOpts := []sentiment.Option{
		sentiment.WithToken(cfg.AnalysisToken),
		sentiment.WithTimeout(cfg.AnalysisTimeout),
	}
	if cfg.RedisAddr != "" {
		cache, err := kv.NewRedisStore(ctx, kv.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "issue-sentiment:",
		})
		if err != nil {
			logger.Warn("Sentiment cache unavailable, continuing without it", "addr", cfg.RedisAddr, "error", err)
		} else {
			p.cache = cache
			sentimentOpts = append(sentimentOpts, sentiment.WithCache(cache, cfg.SentimentCacheTTL))
			logger.Info("Sentiment cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.SentimentCacheTTL.String())
		}
	}
	analyzer := sentiment.NewClient(cfg.AnalysisURL, logger, sentimentOpts...)

	appSyncer := syncer.NewSyncer(
		store.New(dbpool, logger),
		ghClient,
		normalizer.New(ghClient, analyzer, logger),
		logger,
	)
	source := jobfeed.NewPGSource(dbpool, cfg.JobWindow, logger)
	p.watcher = jobfeed.NewWatcher(source, appSyncer, cfg.JobQueueSize, logger)
	return p, nil
}

func runMigrations(path, dbURL string) error {
	m, err := migrate.New(path, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
