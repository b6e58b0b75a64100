package config

import (
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Indexer.BaseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %s", cfg.Indexer.BaseURL)
	}
	if cfg.Indexer.PollInterval != 10*time.Second {
		t.Errorf("expected 10s poll interval, got %s", cfg.Indexer.PollInterval)
	}
	if cfg.Indexer.Configured() {
		t.Error("expected indexer to be unconfigured without an API key")
	}
	if !cfg.FallbackOnError {
		t.Error("expected fallback to default to true")
	}
	if cfg.JobsTable != DefaultJobsTable {
		t.Errorf("expected default table, got %s", cfg.JobsTable)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		EnvAPIKey:          "key",
		EnvIndexID:         "idx-1",
		EnvBaseURL:         "http://localhost:9999/v1",
		EnvPollInterval:    "2s",
		EnvPollMaxInterval: "8s",
		EnvPollTimeout:     "1m",
		EnvFallbackOnError: "false",
		EnvEventBus:        "forest-bus",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Indexer.Configured() || cfg.Indexer.IndexID != "idx-1" {
		t.Errorf("unexpected indexer config: %+v", cfg.Indexer)
	}
	if cfg.Indexer.PollMaxInterval != 8*time.Second || cfg.Indexer.PollTimeout != time.Minute {
		t.Errorf("unexpected poll settings: %+v", cfg.Indexer)
	}
	if cfg.FallbackOnError {
		t.Error("expected fallback disabled")
	}
	if cfg.EventBus != "forest-bus" {
		t.Errorf("unexpected event bus %q", cfg.EventBus)
	}
}

func TestLoadFrom_APIKeyRequiresIndex(t *testing.T) {
	_, err := LoadFrom(envMap(map[string]string{EnvAPIKey: "key"}))
	if err == nil || !strings.Contains(err.Error(), EnvIndexID) {
		t.Fatalf("expected index id error, got %v", err)
	}
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":   {EnvPollTimeout: "soon"},
		"bad bool":       {EnvFallbackOnError: "maybe"},
		"bad url":        {EnvBaseURL: "not a url"},
		"max below base": {EnvPollInterval: "30s", EnvPollMaxInterval: "5s"},
		"zero timeout":   {EnvPollTimeout: "0s"},
	}
	for name, env := range cases {
		if _, err := LoadFrom(envMap(env)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestWithAPIKey(t *testing.T) {
	cfg, _ := LoadFrom(envMap(nil))
	updated := cfg.WithAPIKey("from-ssm")
	if updated.Indexer.APIKey != "from-ssm" {
		t.Errorf("expected key to be set")
	}
	if cfg.Indexer.APIKey != "" {
		t.Errorf("expected original config to be unchanged")
	}
}
