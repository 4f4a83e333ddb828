package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Errorf("GeminiModel = %q, want gemini-2.5-flash", cfg.GeminiModel)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Temperature)
	}
	if cfg.ResetCorruptRecords {
		t.Error("ResetCorruptRecords should default to false (corrupt records are fatal loads)")
	}
	if cfg.RateLimit.WindowDuration != time.Minute {
		t.Errorf("RateLimit.WindowDuration = %v, want 1m", cfg.RateLimit.WindowDuration)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("STORE_RESET_CORRUPT", "true")
	t.Setenv("RATE_LIMIT_REQUESTS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-2.5-pro" {
		t.Errorf("GeminiModel = %q, want gemini-2.5-pro", cfg.GeminiModel)
	}
	if !cfg.ResetCorruptRecords {
		t.Error("ResetCorruptRecords should be true")
	}
	if cfg.RateLimit.RequestsPerWindow != 3 {
		t.Errorf("RateLimit.RequestsPerWindow = %d, want 3", cfg.RateLimit.RequestsPerWindow)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"empty model", func(c *Config) { c.GeminiModel = "" }},
		{"zero body size", func(c *Config) { c.MaxRequestBodySize = 0 }},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }},
		{"service log enabled without dir", func(c *Config) {
			c.ServiceLog.Enabled = true
			c.ServiceLog.Dir = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate should reject invalid config")
			}
		})
	}
}
