package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.ServerReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.ServerWriteTimeout)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, 60, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.TracingEnabled)
	assert.True(t, cfg.DemoMode())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PORT":                 "9090",
		"LLM_PROVIDER":         "anthropic",
		"ANTHROPIC_API_KEY":    "sk-ant",
		"GEMINI_API_KEY":       "g-key",
		"LLM_TIMEOUT":          "5s",
		"NATS_URL":             "nats://localhost:4222",
		"CORS_ALLOWED_ORIGINS": "http://a.test,http://b.test",
		"TRACING_ENABLED":      "true",
	})
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "sk-ant", cfg.APIKey())
	assert.False(t, cfg.DemoMode())
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.True(t, cfg.TracingEnabled)
}

func TestAPIKey_PerProvider(t *testing.T) {
	cfg := &Config{GeminiAPIKey: "g", AnthropicAPIKey: "a", OpenAIAPIKey: "o"}

	for provider, want := range map[string]string{"gemini": "g", "": "g", "Anthropic": "a", "openai": "o"} {
		cfg.LLMProvider = provider
		assert.Equal(t, want, cfg.APIKey(), provider)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	_, err := LoadFrom(map[string]string{"RATE_LIMIT_REQUESTS": "lots"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoad_ProcessEnv(t *testing.T) {
	t.Setenv("PORT", "7070")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.ServerPort)
}
