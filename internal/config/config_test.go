package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, "gemini", cfg.Evaluator.Provider)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestConfigString(t *testing.T) {
	t.Run("masks credentials", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Evaluator.APIKey = "secret-eval-key"
		cfg.Speech.APIKey = "secret-speech-key"

		s := cfg.String()

		assert.NotContains(t, s, "secret-eval-key")
		assert.NotContains(t, s, "secret-speech-key")
		assert.Contains(t, s, "[REDACTED]")
	})

	t.Run("empty keys stay empty", func(t *testing.T) {
		cfg := DefaultConfig()

		assert.NotContains(t, cfg.String(), "[REDACTED]")
	})

	t.Run("does not mutate the config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Evaluator.APIKey = "secret"

		_ = cfg.String()

		assert.Equal(t, "secret", cfg.Evaluator.APIKey)
	})
}
