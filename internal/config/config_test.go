package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Upstream: UpstreamConfig{
			BaseURL:       "https://portal.example.org/api",
			Timeout:       15 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
			Lookback: 24 * time.Hour,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.Upstream.RetryAttempts = 0 },
			wantSub: "retry_attempts",
		},
		{
			name:    "negative retry delay",
			mutate:  func(c *Config) { c.Upstream.RetryDelay = -time.Second },
			wantSub: "retry_delay",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Upstream.Timeout = 0 },
			wantSub: "timeout",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Sync.Interval = 0 },
			wantSub: "sync.interval",
		},
		{
			name:    "zero lookback",
			mutate:  func(c *Config) { c.Sync.Lookback = 0 },
			wantSub: "sync.lookback",
		},
		{
			name: "classifier enabled without key",
			mutate: func(c *Config) {
				c.Classifier.Enabled = true
				c.Classifier.APIKey = ""
			},
			wantSub: "classifier.api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should mention %q", err, tt.wantSub)
			}
		})
	}
}
