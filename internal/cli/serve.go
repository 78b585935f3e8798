package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vivasim/vivasim/internal/config"
	"github.com/vivasim/vivasim/internal/httpapi"
	"github.com/vivasim/vivasim/internal/logger"
	"github.com/vivasim/vivasim/pkg/evaluator"
	"github.com/vivasim/vivasim/pkg/speech"
	"github.com/vivasim/vivasim/pkg/viva"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the viva API server",
	Long: `Start the HTTP server that hosts viva sessions.
The server keeps sessions in memory and talks to the configured LLM
provider for questions and evaluations, and to ElevenLabs for speech.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Close()

	zl := appLogger.GetZerolog()

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	zl.Info().
		Str("provider", provider.Name()).
		Msg("Evaluator provider configured")

	gw := evaluator.NewGateway(provider, zl)
	tts := buildSynthesizer(cfg, zl)
	store := viva.NewStore()
	orch := viva.NewOrchestrator(store, gw, tts, zl)

	server, err := httpapi.NewServer(httpapi.ServerOptions{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	}, orch, store, zl)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Reload the log level when the config file changes on disk
	watcher, err := config.NewWatcher(loader.GetConfigPath(), func(next *config.Config) {
		logger.SetGlobalLevel(next.Logging.Level)
	})
	if err != nil {
		zl.Warn().Err(err).Msg("Config watcher unavailable")
	} else if err := watcher.Start(); err != nil {
		zl.Warn().Err(err).Msg("Failed to start config watcher")
	} else {
		defer watcher.Stop()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zl.Info().Str("signal", sig.String()).Msg("Received signal")
		if err := server.Stop(); err != nil {
			zl.Error().Err(err).Msg("Failed to stop server")
		}
		return nil
	case err := <-errChan:
		return err
	}
}

// buildProvider constructs the LLM provider named by the config
func buildProvider(cfg *config.Config) (evaluator.Provider, error) {
	switch cfg.Evaluator.Provider {
	case "gemini":
		var opts []evaluator.GeminiOption
		if cfg.Evaluator.Model != "" {
			opts = append(opts, evaluator.WithGeminiModel(cfg.Evaluator.Model))
		}
		return evaluator.NewGemini(cfg.Evaluator.APIKey, opts...), nil
	case "openai":
		return evaluator.NewOpenAI(cfg.Evaluator.APIKey, cfg.Evaluator.Model), nil
	case "anthropic":
		return evaluator.NewAnthropic(cfg.Evaluator.APIKey, cfg.Evaluator.Model), nil
	default:
		return nil, fmt.Errorf("unknown evaluator provider: %s", cfg.Evaluator.Provider)
	}
}

// buildSynthesizer constructs the ElevenLabs client from the config
func buildSynthesizer(cfg *config.Config, zl zerolog.Logger) *speech.Client {
	var opts []speech.Option
	if cfg.Speech.VoiceID != "" {
		opts = append(opts, speech.WithVoice(cfg.Speech.VoiceID))
	}
	if cfg.Speech.ModelID != "" {
		opts = append(opts, speech.WithModel(cfg.Speech.ModelID))
	}
	return speech.NewClient(cfg.Speech.APIKey, zl, opts...)
}
