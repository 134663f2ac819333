package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/gemini-voice/internal/audio"
	"github.com/lexiqai/gemini-voice/internal/live"
	"github.com/lexiqai/gemini-voice/internal/observability"
	"github.com/lexiqai/gemini-voice/internal/tts"
)

var (
	generativeOnly bool

	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List models available to the API key",
		Args:  cobra.NoArgs,
		RunE:  runModels,
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect <file.wav>",
		Short: "Report the format and levels of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check that the REST and Live endpoints accept the API key",
		Args:  cobra.NoArgs,
		RunE:  runHealth,
	}
)

func init() {
	modelsCmd.Flags().BoolVar(&generativeOnly, "generative", false, "only list models that support generateContent")
}

func runModels(cmd *cobra.Command, _ []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	ctx, cancel := runContext(cmd, c)
	defer cancel()

	logger := observability.ForInvocation("models")
	client := tts.NewGeminiClient(c, logger, observability.NewInvocationMetrics("models"))

	out := cmd.OutOrStdout()
	if !generativeOnly {
		models, err := client.ListModels(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Available Models:")
		for _, m := range models {
			fmt.Fprintf(out, "- %s (Display Name: %s)\n", m.Name, m.DisplayName)
		}
		return nil
	}

	models, err := client.ListGenerativeModels(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Models with generateContent support:")
	if len(models) == 0 {
		fmt.Fprintln(out, "No models found with generateContent support.")
		return nil
	}
	for _, m := range models {
		fmt.Fprintf(out, "- %s (Display Name: %s)\n", m.Name, m.DisplayName)
		fmt.Fprintf(out, "  Methods: %s\n", strings.Join(m.SupportedGenerationMethods, ", "))
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	info, err := audio.InspectFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:            %s\n", info.Path)
	fmt.Fprintf(out, "Format:          %d Hz, %d channel(s), %d-bit\n", info.SampleRate, info.Channels, info.BitsPerSample)
	fmt.Fprintf(out, "Duration:        %s (%d frames)\n", info.Duration, info.Frames)
	fmt.Fprintf(out, "Max value:       %d\n", info.Stats.Max)
	fmt.Fprintf(out, "Min value:       %d\n", info.Stats.Min)
	fmt.Fprintf(out, "Avg amplitude:   %.2f\n", info.Stats.AvgAmplitude)
	fmt.Fprintf(out, "RMS:             %.2f\n", info.Stats.RMS)
	fmt.Fprintf(out, "Non-zero:        %.1f%%\n", info.Stats.PercentNonZero)
	fmt.Fprintf(out, "Dynamic range:   %.1f%% of maximum\n", info.Stats.DynamicRange)
	if info.Stats.IsSilent() {
		fmt.Fprintln(out, "Warning: file is silent")
	}
	return nil
}

func runHealth(cmd *cobra.Command, _ []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	ctx, cancel := runContext(cmd, c)
	defer cancel()

	logger := observability.ForInvocation("health")
	client := tts.NewGeminiClient(c, logger, observability.NewInvocationMetrics("health"))
	dialer := live.NewWebSocketDialer(c.GeminiLiveURL, c.GeminiAPIKey, c.LiveDialTimeout)

	status := observability.CheckDependencies(ctx, 10*time.Second, map[string]observability.HealthCheckFunc{
		"gemini_rest": client.HealthCheck,
		"gemini_live": dialer.HealthCheck,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}

	if !status.IsReady() {
		return fmt.Errorf("service not ready")
	}
	return nil
}
