package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".vivasim", "vivasim.json")
	}

	// Missing file means defaults plus environment credentials.
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		applyEnvCredentials(cfg)
		return cfg, nil
	}

	// Setup viper
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	// Read environment variables
	v.SetEnvPrefix("VIVASIM")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into config struct
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvCredentials(cfg)

	return cfg, nil
}

// applyEnvCredentials fills missing API keys from the conventional
// environment variables.
func applyEnvCredentials(cfg *Config) {
	if cfg.Evaluator.APIKey == "" {
		switch cfg.Evaluator.Provider {
		case "openai":
			cfg.Evaluator.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.Evaluator.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			cfg.Evaluator.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if cfg.Speech.APIKey == "" {
		cfg.Speech.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vivasim", "vivasim.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
