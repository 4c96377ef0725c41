package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultAIBaseURL, cfg.AIBaseURL)
	assert.Equal(t, DefaultAIModel, cfg.AIModel)
	assert.Equal(t, DefaultAIMaxRetries, cfg.AIMaxRetries)
	assert.Equal(t, DefaultBreakerThreshold, cfg.BreakerThreshold)
	assert.Equal(t, DefaultBreakerCooldown, cfg.BreakerCooldown)
	assert.Equal(t, DefaultThrottleInterval, cfg.ThrottleInterval)
	assert.False(t, cfg.AIEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("AI_API_KEY", "sk-test")
	t.Setenv("AI_MODEL", "gpt-4o")
	t.Setenv("AI_MAX_RETRIES", "5")
	t.Setenv("BREAKER_COOLDOWN", "2m")
	t.Setenv("THROTTLE_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.AIEnabled())
	assert.Equal(t, "gpt-4o", cfg.AIModel)
	assert.Equal(t, 5, cfg.AIMaxRetries)
	assert.Equal(t, 2*time.Minute, cfg.BreakerCooldown)
	assert.Equal(t, 250*time.Millisecond, cfg.ThrottleInterval)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("AI_MAX_RETRIES", "not-a-number")
	t.Setenv("BREAKER_COOLDOWN", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAIMaxRetries, cfg.AIMaxRetries)
	assert.Equal(t, DefaultBreakerCooldown, cfg.BreakerCooldown)
}

func TestValidate_NegativeRetries(t *testing.T) {
	cfg := &Config{Port: "8080", AIMaxRetries: -1}
	assert.Error(t, cfg.Validate())
}

func TestValidate_AIKeyWithoutBaseURL(t *testing.T) {
	cfg := &Config{Port: "8080", AIAPIKey: "sk-test"}
	assert.Error(t, cfg.Validate())
}
