// Package config loads process configuration from the environment and an
// optional config file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Port               string
	RateLimitPerMinute int

	// Local persistence
	LocalStore   string
	SQLiteDBPath string

	// AMQP; an empty URL disables queued sync
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Cloud backup
	CloudBackend     string
	CloudTimeout     time.Duration
	CloudAccessToken string
	GCSBucket        string
	GCSObjectPrefix  string
	AzureBlobURL     string
	AzureContainer   string

	// Category suggestions
	SuggestProvider    string
	GeminiAPIKey       string
	GeminiModel        string
	SuggestTimeout     time.Duration
	SuggestCacheSize   int
	SuggestCacheTTL    time.Duration
	SuggestConcurrency int

	// Recurring items
	RecurringInterval   time.Duration
	RecurringMaxCatchUp int

	// Budget defaults for a fresh vault
	BaselineIncome int64
	Currency       string

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	localStores      = []string{"memory", "sqlite"}
	cloudBackends    = []string{"none", "memory", "drive", "gcs", "azure"}
	suggestProviders = []string{"none", "heuristic", "gemini"}
	logLevels        = []string{"debug", "info", "warn", "error"}
	logFormats       = []string{"text", "json"}
)

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("rate_limit_per_minute", 120)

	v.SetDefault("local_store", "sqlite")
	v.SetDefault("sqlite_db_path", "./data/vault.db")

	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "vault")
	v.SetDefault("amqp_queue", "sync_snapshot")

	v.SetDefault("cloud_backend", "none")
	v.SetDefault("cloud_timeout", 20*time.Second)
	v.SetDefault("cloud_access_token", "")
	v.SetDefault("gcs_bucket", "")
	v.SetDefault("gcs_object_prefix", "vault")
	v.SetDefault("azure_blob_url", "")
	v.SetDefault("azure_container", "vault")

	v.SetDefault("suggest_provider", "heuristic")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("suggest_timeout", 15*time.Second)
	v.SetDefault("suggest_cache_size", 500)
	v.SetDefault("suggest_cache_ttl", 24*time.Hour)
	v.SetDefault("suggest_concurrency", 4)

	v.SetDefault("recurring_interval", time.Hour)
	v.SetDefault("recurring_max_catch_up", 12)

	v.SetDefault("baseline_income", 0)
	v.SetDefault("currency", "INR")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads defaults, then VAULT_CONFIG_FILE if set, then the environment.
// Environment variables are the upper-case keys (PORT, SQLITE_DB_PATH, ...).
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)

	if path := os.Getenv("VAULT_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		Port:               v.GetString("port"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),

		LocalStore:   strings.ToLower(v.GetString("local_store")),
		SQLiteDBPath: v.GetString("sqlite_db_path"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		CloudBackend:     strings.ToLower(v.GetString("cloud_backend")),
		CloudTimeout:     v.GetDuration("cloud_timeout"),
		CloudAccessToken: v.GetString("cloud_access_token"),
		GCSBucket:        v.GetString("gcs_bucket"),
		GCSObjectPrefix:  v.GetString("gcs_object_prefix"),
		AzureBlobURL:     v.GetString("azure_blob_url"),
		AzureContainer:   v.GetString("azure_container"),

		SuggestProvider:    strings.ToLower(v.GetString("suggest_provider")),
		GeminiAPIKey:       v.GetString("gemini_api_key"),
		GeminiModel:        v.GetString("gemini_model"),
		SuggestTimeout:     v.GetDuration("suggest_timeout"),
		SuggestCacheSize:   v.GetInt("suggest_cache_size"),
		SuggestCacheTTL:    v.GetDuration("suggest_cache_ttl"),
		SuggestConcurrency: v.GetInt("suggest_concurrency"),

		RecurringInterval:   v.GetDuration("recurring_interval"),
		RecurringMaxCatchUp: v.GetInt("recurring_max_catch_up"),

		BaselineIncome: v.GetInt64("baseline_income"),
		Currency:       strings.ToUpper(v.GetString("currency")),

		LogLevel:  strings.ToLower(v.GetString("log_level")),
		LogFormat: strings.ToLower(v.GetString("log_format")),
	}
	return cfg, nil
}

// QueuedSync reports whether uploads go through the AMQP worker.
func (c *Config) QueuedSync() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(localStores, c.LocalStore) {
		errors = append(errors, fmt.Sprintf("invalid local store '%s': must be one of %v", c.LocalStore, localStores))
	}
	if c.LocalStore == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite store")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.LocalStore != "sqlite" {
			errors = append(errors, "queued sync requires the sqlite store: the worker reads the snapshot from the database")
		}
		if c.CloudBackend == "none" {
			errors = append(errors, "AMQP URL is set but CLOUD_BACKEND is 'none': nothing to sync")
		}
	}

	if !slices.Contains(cloudBackends, c.CloudBackend) {
		errors = append(errors, fmt.Sprintf("invalid cloud backend '%s': must be one of %v", c.CloudBackend, cloudBackends))
	}
	switch c.CloudBackend {
	case "gcs":
		if c.GCSBucket == "" {
			errors = append(errors, "GCS bucket is required when using the gcs cloud backend")
		}
	case "azure":
		if c.AzureBlobURL == "" {
			errors = append(errors, "Azure blob URL is required when using the azure cloud backend")
		} else if u, err := url.Parse(c.AzureBlobURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid Azure blob URL '%s': must be an http(s) URL", c.AzureBlobURL))
		}
	}
	if c.CloudTimeout < time.Second || c.CloudTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid cloud timeout %v: must be between 1 second and 5 minutes", c.CloudTimeout))
	}

	if !slices.Contains(suggestProviders, c.SuggestProvider) {
		errors = append(errors, fmt.Sprintf("invalid suggestion provider '%s': must be one of %v", c.SuggestProvider, suggestProviders))
	}
	if c.SuggestProvider == "gemini" && c.GeminiModel == "" {
		errors = append(errors, "Gemini model cannot be empty when using the gemini provider")
	}
	if c.SuggestTimeout < time.Second || c.SuggestTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid suggestion timeout %v: must be between 1 second and 2 minutes", c.SuggestTimeout))
	}
	if c.SuggestCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid suggestion cache size %d: must be at least 1", c.SuggestCacheSize))
	}
	if c.SuggestConcurrency < 1 || c.SuggestConcurrency > 32 {
		errors = append(errors, fmt.Sprintf("invalid suggestion concurrency %d: must be between 1 and 32", c.SuggestConcurrency))
	}

	if c.RecurringInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}
	if c.RecurringMaxCatchUp < 1 || c.RecurringMaxCatchUp > 120 {
		errors = append(errors, fmt.Sprintf("invalid recurring catch-up %d: must be between 1 and 120", c.RecurringMaxCatchUp))
	}

	if c.BaselineIncome < 0 {
		errors = append(errors, fmt.Sprintf("invalid baseline income %d: must not be negative", c.BaselineIncome))
	}
	if len(c.Currency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be a 3-letter code", c.Currency))
	}

	if !slices.Contains(logLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, logLevels))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, logFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
