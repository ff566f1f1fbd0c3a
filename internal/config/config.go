package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	CORSOrigins string `envconfig:"CORS_ORIGINS"`

	// Auth: "none", "api-key" or "jwt"
	AuthMode  string `envconfig:"AUTH_MODE" default:"api-key"`
	APIKey    string `envconfig:"API_KEY"`
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Persistence
	DBPath string `envconfig:"DB_PATH" default:"dashboard.db"`

	// Orchestration (Kubernetes)
	KubeconfigPath   string `envconfig:"KUBECONFIG_PATH"` // empty = in-cluster config
	WorkerNamespace  string `envconfig:"WORKER_NAMESPACE" default:"scraping"`
	WorkerTemplate   string `envconfig:"WORKER_TEMPLATE" default:"scrape-worker"`
	TemplateSpecPath string `envconfig:"TEMPLATE_SPEC_PATH" default:"worker-template.yaml"`

	// Metrics platform (per-task utilization)
	PrometheusURL string `envconfig:"PROMETHEUS_URL"`

	// Reconciliation
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"30s"`
	LogTailLines      int           `envconfig:"LOG_TAIL_LINES" default:"200"`
	LogFetchLimit     int           `envconfig:"LOG_FETCH_LIMIT" default:"8"` // concurrent log fetches per sweep
	SuccessMarker     string        `envconfig:"SUCCESS_MARKER" default:"All estimates processed successfully"`
	ErrorMarker       string        `envconfig:"ERROR_MARKER" default:"ERROR"`

	// Remote call retry policy
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay    time.Duration `envconfig:"RETRY_MAX_DELAY" default:"10s"`

	// Notifications (optional, disabled without a token)
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannel  string `envconfig:"SLACK_CHANNEL"`

	// Seeding utility
	SeedChunkSize   int `envconfig:"SEED_CHUNK_SIZE" default:"25"`
	SeedConcurrency int `envconfig:"SEED_CONCURRENCY" default:"8"`
}

// SlackEnabled returns true if Slack notifications are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// MetricsEnabled returns true if a Prometheus endpoint is configured for
// per-task utilization queries.
func (c *Config) MetricsEnabled() bool {
	return c.PrometheusURL != ""
}

// Validate checks configuration combinations that envconfig cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.AuthMode) {
	case "none":
	case "api-key":
		if c.APIKey == "" {
			return fmt.Errorf("AUTH_MODE=api-key requires API_KEY")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("AUTH_MODE=jwt requires JWT_SECRET")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
