package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"search-term-analyzer/internal/ai"
)

// DefaultPath is read when CONFIG_PATH is unset and the file exists.
const DefaultPath = "config.yaml"

// Config is the complete service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	AI     AIConfig     `yaml:"ai"`
	Site   SiteConfig   `yaml:"site"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// AIConfig selects and tunes the generative provider.
type AIConfig struct {
	Provider          string        `yaml:"provider"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	Model             string        `yaml:"model"`
	GeminiBaseURL     string        `yaml:"gemini_base_url"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	ResolveTimeout    time.Duration `yaml:"resolve_timeout"`
	StreamTimeout     time.Duration `yaml:"stream_timeout"`
}

// SiteConfig controls website text extraction.
type SiteConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "2000",
			MaxUploadBytes: 10 << 20,
		},
		AI: AIConfig{
			Provider:          ai.ProviderGemini,
			Temperature:       0.2,
			RequestsPerMinute: 60,
			ResolveTimeout:    60 * time.Second,
		},
		Site: SiteConfig{FetchTimeout: 15 * time.Second},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnvironment loads CONFIG_PATH (or config.yaml when present), applies
// environment overrides and validates the result.
func FromEnvironment(getenv func(string) string) (Config, error) {
	path := strings.TrimSpace(getenv("CONFIG_PATH"))
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = parsed
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = parsed
		}
	}

	str("PORT", &c.Server.Port)
	if v := strings.TrimSpace(getenv("ALLOWED_ORIGINS")); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := strings.TrimSpace(getenv("MAX_UPLOAD_BYTES")); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err))
		} else {
			c.Server.MaxUploadBytes = parsed
		}
	}

	str("AI_PROVIDER", &c.AI.Provider)
	str("GEMINI_API_KEY", &c.AI.GeminiAPIKey)
	str("OPENAI_API_KEY", &c.AI.OpenAIAPIKey)
	str("AI_MODEL", &c.AI.Model)
	str("GEMINI_BASE_URL", &c.AI.GeminiBaseURL)
	str("OPENAI_BASE_URL", &c.AI.OpenAIBaseURL)
	if v := strings.TrimSpace(getenv("AI_TEMPERATURE")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("AI_TEMPERATURE: %w", err))
		} else {
			c.AI.Temperature = parsed
		}
	}
	integer("AI_MAX_TOKENS", &c.AI.MaxTokens)
	integer("AI_REQUESTS_PER_MINUTE", &c.AI.RequestsPerMinute)
	duration("AI_RESOLVE_TIMEOUT", &c.AI.ResolveTimeout)
	duration("AI_STREAM_TIMEOUT", &c.AI.StreamTimeout)
	duration("SITE_FETCH_TIMEOUT", &c.Site.FetchTimeout)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)

	return errors.Join(errs...)
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.AI.Provider)) {
	case ai.ProviderGemini, ai.ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("ai.provider must be %q or %q, got %q", ai.ProviderGemini, ai.ProviderOpenAI, c.AI.Provider))
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.AI.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("ai.requests_per_minute must not be negative"))
	}
	if c.AI.ResolveTimeout < 0 || c.AI.StreamTimeout < 0 || c.Site.FetchTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, errors.New("ai.temperature must be between 0 and 2"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Provider returns the ai package configuration for the selected provider.
func (c Config) Provider() ai.Config {
	provider := strings.ToLower(strings.TrimSpace(c.AI.Provider))
	key, baseURL := c.AI.GeminiAPIKey, c.AI.GeminiBaseURL
	if provider == ai.ProviderOpenAI {
		key, baseURL = c.AI.OpenAIAPIKey, c.AI.OpenAIBaseURL
	}
	return ai.Config{
		Provider:          provider,
		APIKey:            key,
		Model:             c.AI.Model,
		BaseURL:           baseURL,
		Temperature:       c.AI.Temperature,
		MaxTokens:         c.AI.MaxTokens,
		RequestsPerMinute: c.AI.RequestsPerMinute,
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
