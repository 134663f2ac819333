package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexiqai/gemini-voice/internal/config"
	"github.com/lexiqai/gemini-voice/internal/observability"
)

var (
	// cfg is loaded once in PersistentPreRunE. cfgErr is kept so commands
	// that do not talk to the API (inspect) still work without a key.
	cfg    *config.Config
	cfgErr error

	rootCmd = &cobra.Command{
		Use:           "gemini-voice",
		Short:         "Turn text into speech with the Gemini API",
		Long:          "Turn text into speech with the Gemini API, either with a single generateContent call (tts) or over a BidiGenerateContent session (live). Output is written as a WAV file.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgErr = config.Load()
			if cfgErr != nil {
				// Logger settings still come from the environment
				observability.InitLogger(config.GetEnv("LOG_LEVEL", "info"), envBool("LOG_PRETTY"))
				return nil
			}
			observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
			return nil
		},
	}
)

func main() {
	err := rootCmd.Execute()

	if cfg != nil {
		if mErr := observability.WriteTextfile(cfg.MetricsFile); mErr != nil {
			logger := observability.GetLogger()
			logger.Error().Err(mErr).Msg("Failed to write metrics")
		}
	}

	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(ttsCmd, liveCmd, modelsCmd, inspectCmd, healthCmd)
}

// requireConfig returns the loaded configuration or the load error
func requireConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	return cfg, nil
}

// envBool reads key with strconv.ParseBool rules. Unset or unparsable is false.
func envBool(key string) bool {
	v, err := strconv.ParseBool(config.GetEnv(key, "false"))
	return err == nil && v
}

// runContext is canceled on SIGINT/SIGTERM and after REQUEST_TIMEOUT when set
func runContext(cmd *cobra.Command, c *config.Config) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	if c.RequestTimeout <= 0 {
		return ctx, stop
	}

	ctx, cancel := context.WithTimeout(ctx, c.RequestTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
