// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	DBURL          string `mapstructure:"DB_URL"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`
	APIAddr        string `mapstructure:"API_ADDR"`

	GithubToken      string        `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL     string        `mapstructure:"GITHUB_API_URL"`
	GithubRetryDelay time.Duration `mapstructure:"GITHUB_RETRY_DELAY"`
	GithubMaxRetries int           `mapstructure:"GITHUB_MAX_RETRIES"`
	IssuesPerPage    int           `mapstructure:"ISSUES_PER_PAGE"`

	AnalysisURL     string        `mapstructure:"ANALYSIS_URL"`
	AnalysisToken   string        `mapstructure:"ANALYSIS_TOKEN"`
	AnalysisTimeout time.Duration `mapstructure:"ANALYSIS_TIMEOUT"`

	JobWindow    int `mapstructure:"JOB_WINDOW"`
	JobQueueSize int `mapstructure:"JOB_QUEUE_SIZE"`

	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int           `mapstructure:"REDIS_DB"`
	SentimentCacheTTL time.Duration `mapstructure:"SENTIMENT_CACHE_TTL"`
}

var defaults = map[string]any{
	"LOG_LEVEL":           "info",
	"DB_URL":              "",
	"MIGRATIONS_PATH":     "file://migrations",
	"API_ADDR":            ":8080",
	"GITHUB_TOKEN":        "",
	"GITHUB_API_URL":      "",
	"GITHUB_RETRY_DELAY":  "5s",
	"GITHUB_MAX_RETRIES":  5,
	"ISSUES_PER_PAGE":     100,
	"ANALYSIS_URL":        "http://localhost:5000",
	"ANALYSIS_TOKEN":      "",
	"ANALYSIS_TIMEOUT":    "30s",
	"JOB_WINDOW":          10,
	"JOB_QUEUE_SIZE":      64,
	"REDIS_ADDR":          "",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"SENTIMENT_CACHE_TTL": "168h",
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Every key gets a default so Unmarshal sees values coming from the environment.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	if c.AnalysisURL == "" {
		return errors.New("ANALYSIS_URL is a required configuration field")
	}
	if c.GithubMaxRetries < 1 {
		return errors.New("GITHUB_MAX_RETRIES must be at least 1")
	}
	if c.GithubRetryDelay <= 0 {
		return errors.New("GITHUB_RETRY_DELAY must be a positive duration (e.g. 5s)")
	}
	if c.IssuesPerPage < 1 || c.IssuesPerPage > 100 {
		return errors.New("ISSUES_PER_PAGE must be between 1 and 100")
	}
	if c.JobWindow < 1 {
		return errors.New("JOB_WINDOW must be at least 1")
	}
	if c.JobQueueSize < c.JobWindow {
		return errors.New("JOB_QUEUE_SIZE must be at least JOB_WINDOW")
	}
	return nil
}
