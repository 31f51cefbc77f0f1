package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"PC_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"PC_DB_MAX_CONNS" default:"8"`

	NewswireClientID     string `envconfig:"NEWSWIRE_CLIENT_ID" required:"true"`
	NewswireClientSecret string `envconfig:"NEWSWIRE_CLIENT_SECRET" required:"true"`

	ClassifierAPIKey string `envconfig:"CLASSIFIER_API_KEY" required:"true"`
	ClassifierModel  string `envconfig:"CLASSIFIER_MODEL" default:"claude-sonnet-4-5-20250929"`
	PrefilterModel   string `envconfig:"PREFILTER_MODEL" default:"claude-3-5-haiku-20241022"`

	// CheckMaxWindow caps the look-back interval of a check run no matter
	// how long ago the previous run finished.
	CheckMaxWindow    time.Duration `envconfig:"CHECK_MAX_WINDOW" default:"3h"`
	BriefingMaxWindow time.Duration `envconfig:"BRIEFING_MAX_WINDOW" default:"24h"`

	HistoryLookback     time.Duration `envconfig:"HISTORY_LOOKBACK" default:"72h"`
	RetentionDays       int           `envconfig:"RETENTION_DAYS" default:"14"`
	PipelineConcurrency int           `envconfig:"PIPELINE_CONCURRENCY" default:"5"`
	FetchConcurrency    int           `envconfig:"FETCH_CONCURRENCY" default:"8"`

	SchedulerTimezone string `envconfig:"SCHEDULER_TIMEZONE" default:"Asia/Seoul"`

	NotifyWebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("PC_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("PC_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("PC_DB_MIN_CONNS (%d) cannot exceed PC_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.CheckMaxWindow <= 0 {
		return fmt.Errorf("CHECK_MAX_WINDOW must be positive")
	}
	if c.BriefingMaxWindow <= 0 {
		return fmt.Errorf("BRIEFING_MAX_WINDOW must be positive")
	}
	if c.HistoryLookback <= 0 {
		return fmt.Errorf("HISTORY_LOOKBACK must be positive")
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be >= 1")
	}
	if c.PipelineConcurrency < 1 {
		return fmt.Errorf("PIPELINE_CONCURRENCY must be >= 1")
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	if _, err := loadLocation(c.SchedulerTimezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the scheduler timezone. Validate must have passed.
func (c *Config) Location() *time.Location {
	loc, err := loadLocation(c.SchedulerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func loadLocation(name string) (*time.Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("timezone is required")
	}
	loc, err := time.LoadLocation(trimmed)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", trimmed, err)
	}
	return loc, nil
}
