package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"keyprobe/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Keystore      KeystoreConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"keyprobe"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	// Timeout bounds every venue call; on expiry the adapter reports a timeout,
	// not a venue error
	Timeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RecvWindow int64         `envconfig:"BINANCE_RECV_WINDOW" default:"5000"`
}

type KeystoreConfig struct {
	// Path to the YAML file grouping credentials by venue and key name
	Path string `envconfig:"KEYS_FILE" default:".keys.yaml"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
