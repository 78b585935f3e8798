package config

import (
	"encoding/json"
)

// Config represents the main Vivasim configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Evaluator (generative-text service)
	Evaluator EvaluatorConfig `json:"evaluator" mapstructure:"evaluator"`

	// Speech (text-to-speech service)
	Speech SpeechConfig `json:"speech" mapstructure:"speech"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string `json:"host" mapstructure:"host"`
	Port               int    `json:"port" mapstructure:"port"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
}

// EvaluatorConfig holds generative-text service configuration. APIKey may be
// left empty and supplied through the provider's environment variable
// (GEMINI_API_KEY, OPENAI_API_KEY, or ANTHROPIC_API_KEY).
type EvaluatorConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // gemini, openai, anthropic
	Model    string `json:"model" mapstructure:"model"`
	APIKey   string `json:"api_key" mapstructure:"api_key"`
}

// SpeechConfig holds text-to-speech configuration. APIKey may be left empty
// and supplied through ELEVENLABS_API_KEY; without a key the service runs
// text-only.
type SpeechConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	VoiceID string `json:"voice_id" mapstructure:"voice_id"`
	ModelID string `json:"model_id" mapstructure:"model_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               5000,
			RateLimitPerMinute: 100,
		},
		Evaluator: EvaluatorConfig{
			Provider: "gemini",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// String returns a JSON representation with credentials masked
func (c *Config) String() string {
	masked := *c
	if masked.Evaluator.APIKey != "" {
		masked.Evaluator.APIKey = "[REDACTED]"
	}
	if masked.Speech.APIKey != "" {
		masked.Speech.APIKey = "[REDACTED]"
	}
	data, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
