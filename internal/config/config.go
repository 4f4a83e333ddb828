// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// Gemini provider settings.
	GeminiAPIKey string
	GeminiModel  string
	// Temperature is fixed low so the assistant sticks to procedural steps.
	Temperature float32

	// ResetCorruptRecords controls what happens when a stored transcript or
	// profile fails to deserialize: true resets the record to empty, false
	// surfaces the load error to the caller.
	ResetCorruptRecords bool

	MaxRequestBodySize int64
	KeepaliveInterval  time.Duration
	RateLimit          RateLimitConfig
	ServiceLog         ServiceLogConfig
}

// RateLimitConfig throttles chat requests per serial number.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ServiceLogConfig controls NDJSON service-event logging.
type ServiceLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// defaultMaxRequestBodySize allows base64 photo attachments (10MB).
const defaultMaxRequestBodySize = 10 << 20

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("SERVICE_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", ""),
		DBPath:              getEnv("DB_PATH", "./data/pressassist.db"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		Temperature:         0.2,
		ResetCorruptRecords: getEnvBool("STORE_RESET_CORRUPT", false),
		MaxRequestBodySize:  int64(getEnvInt("MAX_REQUEST_BODY_SIZE", defaultMaxRequestBodySize)),
		KeepaliveInterval:   10 * time.Second,
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    time.Minute,
		},
		ServiceLog: ServiceLogConfig{
			Enabled:   getEnvBool("SERVICE_LOG_ENABLED", false),
			Dir:       getEnv("SERVICE_LOG_DIR", "./data/logs/service"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.GeminiModel == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.ServiceLog.Enabled && c.ServiceLog.Dir == "" {
		return fmt.Errorf("SERVICE_LOG_DIR cannot be empty when service logging is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
