// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultMaxFileSize is the per-file upload limit (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024
	// DefaultSystemPrompt is prepended to every chat turn as the model's system instruction.
	DefaultSystemPrompt = "You are an advanced AI execution engine designed to translate user intentions into actionable plans " +
		"while strictly ensuring all actions are either explicitly benevolent or neutral. Your core capabilities include: " +
		"(1) A task decomposition engine that breaks down complex goals into clear, executable steps, " +
		"(2) Resource integration that efficiently utilizes both local (device-based) and global (networked) resources, and " +
		"(3) A benevolence-driven framework enforcing strict ethical constraints, preventing any action that could cause harm. " +
		"Given a user's intent or request, decompose the goal into structured, executable steps. " +
		"Verify that each step aligns with benevolence or neutrality before generating the plan. " +
		"If a request has potential risks or ambiguities, modify or reject it while maintaining transparency about the decision. " +
		"Only Respond with a Markdown format. Now, process the following user intent while adhering to these principles:"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Upload   UploadConfig
	Cache    CacheConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          string
	Environment   string // "production" or "development"
	BodySizeLimit int64 // whole-request cap in bytes, 0 for none
}

// Development reports whether error responses may carry debugging detail.
func (s ServerConfig) Development() bool {
	return strings.EqualFold(s.Environment, "development")
}

// ProviderConfig holds the generative model configuration
type ProviderConfig struct {
	Name           string // registered provider name: "gemini" or "dummy"
	APIKey         string
	Model          string
	SystemPrompt   string
	MaxConcurrency int
	Timeout        time.Duration

	Temperature     float32
	TopK            int32
	TopP            float32
	MaxOutputTokens int32
}

// UploadConfig holds temporary upload storage configuration
type UploadConfig struct {
	Dir         string
	MaxFileSize int64
}

// CacheConfig holds extraction cache configuration
type CacheConfig struct {
	Type      string // "none", "local" or "redis"
	TTL       time.Duration
	RedisURL  string
	KeyPrefix string
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// LoggingConfig holds log output configuration
type LoggingConfig struct {
	Format string // "auto", "json", "text" or "pretty"
	Level  string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	// Load .env file using Viper (optional, won't fail if not found)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if .env file doesn't exist

	setDefaults()

	// Enable automatic environment variable reading
	viper.AutomaticEnv()

	apiKey := viper.GetString("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = viper.GetString("GOOGLE_API_KEY")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          viper.GetString("PORT"),
			Environment:   viper.GetString("APP_ENV"),
			BodySizeLimit: viper.GetInt64("BODY_SIZE_LIMIT"),
		},
		Provider: ProviderConfig{
			Name:            strings.ToLower(viper.GetString("PROVIDER")),
			APIKey:          apiKey,
			Model:           viper.GetString("GEMINI_MODEL"),
			SystemPrompt:    viper.GetString("SYSTEM_PROMPT"),
			MaxConcurrency:  viper.GetInt("PROVIDER_MAX_CONCURRENCY"),
			Timeout:         viper.GetDuration("PROVIDER_TIMEOUT"),
			Temperature:     float32(viper.GetFloat64("GENERATION_TEMPERATURE")),
			TopK:            viper.GetInt32("GENERATION_TOP_K"),
			TopP:            float32(viper.GetFloat64("GENERATION_TOP_P")),
			MaxOutputTokens: viper.GetInt32("GENERATION_MAX_OUTPUT_TOKENS"),
		},
		Upload: UploadConfig{
			Dir:         viper.GetString("UPLOAD_DIR"),
			MaxFileSize: viper.GetInt64("UPLOAD_MAX_FILE_SIZE"),
		},
		Cache: CacheConfig{
			Type:      strings.ToLower(viper.GetString("CACHE_TYPE")),
			TTL:       viper.GetDuration("CACHE_TTL"),
			RedisURL:  viper.GetString("REDIS_URL"),
			KeyPrefix: viper.GetString("REDIS_KEY_PREFIX"),
		},
		Metrics: MetricsConfig{
			Enabled:  viper.GetBool("METRICS_ENABLED"),
			Endpoint: viper.GetString("METRICS_ENDPOINT"),
		},
		Logging: LoggingConfig{
			Format: strings.ToLower(viper.GetString("LOG_FORMAT")),
			Level:  viper.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "5000")
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("BODY_SIZE_LIMIT", 0)

	viper.SetDefault("PROVIDER", "gemini")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-pro")
	viper.SetDefault("SYSTEM_PROMPT", DefaultSystemPrompt)
	viper.SetDefault("PROVIDER_MAX_CONCURRENCY", 0)
	viper.SetDefault("PROVIDER_TIMEOUT", time.Duration(0))
	viper.SetDefault("GENERATION_TEMPERATURE", 0.7)
	viper.SetDefault("GENERATION_TOP_K", 40)
	viper.SetDefault("GENERATION_TOP_P", 0.95)
	viper.SetDefault("GENERATION_MAX_OUTPUT_TOKENS", 1024)

	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("UPLOAD_MAX_FILE_SIZE", DefaultMaxFileSize)

	viper.SetDefault("CACHE_TYPE", "none")
	viper.SetDefault("CACHE_TTL", time.Hour)
	viper.SetDefault("REDIS_URL", "redis://localhost:6379")
	viper.SetDefault("REDIS_KEY_PREFIX", "filechat:extract:")

	viper.SetDefault("METRICS_ENABLED", false)
	viper.SetDefault("METRICS_ENDPOINT", "/metrics")

	viper.SetDefault("LOG_FORMAT", "auto")
	viper.SetDefault("LOG_LEVEL", "info")
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_FILE_SIZE must be positive, got %d", c.Upload.MaxFileSize)
	}
	if c.Provider.MaxConcurrency < 0 {
		return fmt.Errorf("PROVIDER_MAX_CONCURRENCY must not be negative, got %d", c.Provider.MaxConcurrency)
	}
	switch c.Cache.Type {
	case "", "none", "local", "redis":
	default:
		return fmt.Errorf("unknown CACHE_TYPE %q (want none, local or redis)", c.Cache.Type)
	}
	if c.Provider.TopP < 0 || c.Provider.TopP > 1 {
		return fmt.Errorf("GENERATION_TOP_P must be within [0, 1], got %v", c.Provider.TopP)
	}
	return nil
}
