package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"search-term-analyzer/internal/ai"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60*time.Second, cfg.AI.ResolveTimeout)
	assert.Zero(t, cfg.AI.StreamTimeout)
	assert.Equal(t, ai.ProviderGemini, cfg.AI.Provider)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "8080"
  allowed_origins: ["http://localhost:3000"]
ai:
  provider: openai
  model: gpt-4.1-mini
  resolve_timeout: 30s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, ai.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, 30*time.Second, cfg.AI.ResolveTimeout)
	assert.Equal(t, 60, cfg.AI.RequestsPerMinute)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(envMap(map[string]string{
		"PORT":                   "9000",
		"AI_PROVIDER":            "openai",
		"OPENAI_API_KEY":         "sk-test",
		"OPENAI_BASE_URL":        "http://localhost:11434/v1",
		"AI_TEMPERATURE":         "0.5",
		"AI_REQUESTS_PER_MINUTE": "10",
		"AI_STREAM_TIMEOUT":      "5m",
		"ALLOWED_ORIGINS":        "http://a.test, http://b.test,",
		"MAX_UPLOAD_BYTES":       "2048",
	}))

	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 5*time.Minute, cfg.AI.StreamTimeout)

	provider := cfg.Provider()
	assert.Equal(t, ai.ProviderOpenAI, provider.Provider)
	assert.Equal(t, "sk-test", provider.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", provider.BaseURL)
	assert.Equal(t, 0.5, provider.Temperature)
	assert.Equal(t, 10, provider.RequestsPerMinute)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(envMap(map[string]string{
		"AI_RESOLVE_TIMEOUT": "sixty",
		"AI_MAX_TOKENS":      "many",
	}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_RESOLVE_TIMEOUT")
	assert.Contains(t, err.Error(), "AI_MAX_TOKENS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.AI.Provider = "claude" }},
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"negative rpm", func(c *Config) { c.AI.RequestsPerMinute = -1 }},
		{"negative timeout", func(c *Config) { c.AI.StreamTimeout = -time.Second }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFromEnvironmentUsesConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  model: gemini-2.5-pro\n"), 0o600))

	cfg, err := FromEnvironment(envMap(map[string]string{
		"CONFIG_PATH":    path,
		"GEMINI_API_KEY": "key",
	}))

	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.AI.Model)
	assert.Equal(t, "key", cfg.Provider().APIKey)
}

func TestProviderBaseURLFollowsProvider(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"GEMINI_API_KEY":  "key",
		"OPENAI_BASE_URL": "http://localhost:11434/v1",
	})))

	provider := cfg.Provider()
	assert.Equal(t, ai.ProviderGemini, provider.Provider)
	assert.Empty(t, provider.BaseURL)

	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"GEMINI_BASE_URL": "http://gemini.internal"})))
	assert.Equal(t, "http://gemini.internal", cfg.Provider().BaseURL)

	cfg.AI.Provider = ai.ProviderOpenAI
	assert.Equal(t, "http://localhost:11434/v1", cfg.Provider().BaseURL)
}

func TestZeroTemperatureIsKept(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"AI_TEMPERATURE": "0"})))

	require.NoError(t, cfg.Validate())
	assert.Zero(t, cfg.Provider().Temperature)
}
