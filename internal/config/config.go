// Package config loads the analyzer configuration from environment variables.
// A Config is loaded once per process, validated eagerly, and treated as
// immutable afterwards; components receive it at construction.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvAPIKey          = "TWELVELABS_API_KEY"
	EnvIndexID         = "TWELVELABS_INDEX_ID"
	EnvBaseURL         = "TWELVELABS_BASE_URL"
	EnvLanguage        = "TWELVELABS_LANGUAGE"
	EnvPollInterval    = "TWELVELABS_POLL_INTERVAL"
	EnvPollMaxInterval = "TWELVELABS_POLL_MAX_INTERVAL"
	EnvPollTimeout     = "TWELVELABS_POLL_TIMEOUT"
	EnvFallbackOnError = "ANALYSIS_FALLBACK_ON_ERROR"
	EnvJobsTable       = "JOBS_TABLE_NAME"
	EnvOutputBucket    = "OUTPUT_BUCKET_NAME"
	EnvEventBus        = "EVENT_BUS_NAME"
)

// Defaults.
const (
	DefaultBaseURL         = "https://api.twelvelabs.io/v1.2"
	DefaultLanguage        = "en"
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxInterval = 60 * time.Second
	DefaultPollTimeout     = 10 * time.Minute
	DefaultJobsTable       = "forest-processing-results"
)

// Indexer holds the video indexing service settings.
type Indexer struct {
	APIKey          string
	IndexID         string
	BaseURL         string
	Language        string
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	PollTimeout     time.Duration
}

// Configured reports whether credentials are present. Without them the
// analyzer always serves the fallback result.
func (i Indexer) Configured() bool {
	return i.APIKey != ""
}

// Config is the process-wide configuration.
type Config struct {
	Indexer Indexer

	// FallbackOnError serves the mock result when the indexing service
	// fails. When false such failures fail the job instead.
	FallbackOnError bool

	JobsTable    string
	OutputBucket string
	EventBus     string
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv, which makes the loader
// testable without touching the process environment.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Config{
		Indexer: Indexer{
			APIKey:   getenv(EnvAPIKey),
			IndexID:  getenv(EnvIndexID),
			BaseURL:  orDefault(getenv(EnvBaseURL), DefaultBaseURL),
			Language: orDefault(getenv(EnvLanguage), DefaultLanguage),
		},
		FallbackOnError: true,
		JobsTable:       orDefault(getenv(EnvJobsTable), DefaultJobsTable),
		OutputBucket:    getenv(EnvOutputBucket),
		EventBus:        getenv(EnvEventBus),
	}

	var err error
	if cfg.Indexer.PollInterval, err = durationOr(getenv, EnvPollInterval, DefaultPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.Indexer.PollMaxInterval, err = durationOr(getenv, EnvPollMaxInterval, DefaultPollMaxInterval); err != nil {
		return Config{}, err
	}
	if cfg.Indexer.PollTimeout, err = durationOr(getenv, EnvPollTimeout, DefaultPollTimeout); err != nil {
		return Config{}, err
	}
	if v := getenv(EnvFallbackOnError); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvFallbackOnError, err)
		}
		cfg.FallbackOnError = b
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.Indexer.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s: invalid base URL %q", EnvBaseURL, c.Indexer.BaseURL))
	}
	if c.Indexer.Configured() && c.Indexer.IndexID == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvIndexID, EnvAPIKey))
	}
	if c.Indexer.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvPollInterval))
	}
	if c.Indexer.PollMaxInterval < c.Indexer.PollInterval {
		errs = append(errs, fmt.Errorf("%s must be >= %s", EnvPollMaxInterval, EnvPollInterval))
	}
	if c.Indexer.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvPollTimeout))
	}
	if c.JobsTable == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", EnvJobsTable))
	}
	return errors.Join(errs...)
}

// WithAPIKey returns a copy of c carrying the given API key. Used when the
// key is resolved from SSM after the environment has been read.
func (c Config) WithAPIKey(key string) Config {
	c.Indexer.APIKey = key
	return c
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
