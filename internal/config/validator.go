package config

import (
	"fmt"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

var validProviders = map[string]bool{
	"gemini":    true,
	"openai":    true,
	"anthropic": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the whole configuration. Missing API keys are not errors:
// the gateways degrade gracefully without credentials.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateServer(cfg.Server); err != nil {
		return err
	}
	if err := v.ValidateProvider(cfg.Evaluator.Provider); err != nil {
		return err
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ValidateServer validates the HTTP server settings
func (v *Validator) ValidateServer(cfg ServerConfig) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Port)
	}
	if cfg.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit per minute cannot be negative: %d", cfg.RateLimitPerMinute)
	}
	return nil
}

// ValidateProvider validates the evaluator provider name
func (v *Validator) ValidateProvider(provider string) error {
	if provider == "" {
		return fmt.Errorf("evaluator provider cannot be empty")
	}
	if !validProviders[provider] {
		return fmt.Errorf("unknown evaluator provider: %s (expected gemini, openai, or anthropic)", provider)
	}
	return nil
}

// ValidateLogLevel validates a log level name
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return nil
	}
	if !validLogLevels[level] {
		return fmt.Errorf("unknown log level: %s", level)
	}
	return nil
}
