package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lexiqai/gemini-voice/internal/audio"
	"github.com/lexiqai/gemini-voice/internal/config"
	"github.com/lexiqai/gemini-voice/internal/live"
	"github.com/lexiqai/gemini-voice/internal/observability"
	"github.com/lexiqai/gemini-voice/internal/tts"
)

// synthFlags are shared by the tts and live commands
type synthFlags struct {
	text        string
	voice       string
	out         string
	model       string
	noNormalize bool
}

func (f *synthFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.text, "text", "", "text to speak")
	cmd.Flags().StringVar(&f.voice, "voice", "", "prebuilt voice name (default $GEMINI_VOICE)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output WAV file (default $OUTPUT_FILE)")
	cmd.Flags().StringVar(&f.model, "model", "", "model name (default from environment)")
	cmd.Flags().BoolVar(&f.noNormalize, "no-normalize", false, "write the PCM payload without peak normalization")
	_ = cmd.MarkFlagRequired("text")
}

// apply overrides the loaded configuration with the flags that were set
func (f *synthFlags) apply(c *config.Config, logger zerolog.Logger) {
	if f.voice != "" {
		c.Voice = f.voice
	}
	if f.out != "" {
		c.OutputFile = f.out
	}
	if f.noNormalize {
		c.Normalize = false
	}
	if !tts.IsKnownVoice(c.Voice) {
		logger.Warn().Str("voice", c.Voice).Strs("known", tts.PrebuiltVoices).Msg("Unknown voice name, sending it anyway")
	}
}

var (
	ttsFlags  synthFlags
	ttsTone   string
	ttsAccent string
	liveFlags synthFlags

	ttsCmd = &cobra.Command{
		Use:   "tts",
		Short: "Synthesize speech with a single generateContent request",
		Args:  cobra.NoArgs,
		RunE:  runTTS,
	}

	liveCmd = &cobra.Command{
		Use:   "live",
		Short: "Synthesize speech over a Live API WebSocket session",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
)

func init() {
	ttsFlags.register(ttsCmd)
	ttsCmd.Flags().StringVar(&ttsTone, "tone", "", "delivery direction, e.g. cheerful")
	ttsCmd.Flags().StringVar(&ttsAccent, "accent", "", "accent direction, e.g. British")

	liveFlags.register(liveCmd)
}

func runTTS(cmd *cobra.Command, _ []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	logger := observability.ForInvocation("tts")
	ttsFlags.apply(c, logger)
	if ttsFlags.model != "" {
		c.TTSModel = ttsFlags.model
	}

	ctx, cancel := runContext(cmd, c)
	defer cancel()

	metrics := observability.NewInvocationMetrics("tts")
	client := tts.NewGeminiClient(c, logger, metrics)

	chunk, err := client.Synthesize(ctx, tts.SpeechRequest{
		Text:   ttsFlags.text,
		Voice:  c.Voice,
		Model:  c.TTSModel,
		Tone:   ttsTone,
		Accent: ttsAccent,
	})
	if err != nil {
		var textErr *tts.TextResponseError
		if errors.As(err, &textErr) {
			logger.Error().Str("text", textErr.Text).Msg("Model returned text instead of audio, file not saved")
		} else {
			logger.Error().Err(err).Msg("Synthesis failed, file not saved")
		}
		return err
	}

	format := audio.Format{SampleRate: chunk.SampleRate, Channels: chunk.Channels, BitsPerSample: 16}
	result, err := audio.WriteWAVFile(c.OutputFile, chunk.Data, audio.WriteOptions{
		Format:    format,
		Normalize: c.Normalize,
	})
	if err != nil {
		metrics.RecordError("write", "audio")
		return err
	}
	metrics.RecordAudioBytes("written", result.DataBytes)

	logger.Info().
		Str("path", result.Path).
		Int("bytes", result.FileBytes).
		Bool("normalized", c.Normalize).
		Interface("stats", result.Stats).
		Dur("elapsed", metrics.Elapsed()).
		Msg("Saved audio")

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes, %d Hz)\n", result.Path, result.FileBytes, format.SampleRate)
	return nil
}

func runLive(cmd *cobra.Command, _ []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	logger := observability.ForInvocation("live")
	liveFlags.apply(c, logger)
	if liveFlags.model != "" {
		c.LiveModel = liveFlags.model
	}

	ctx, cancel := runContext(cmd, c)
	defer cancel()

	dialer := live.NewWebSocketDialer(c.GeminiLiveURL, c.GeminiAPIKey, c.LiveDialTimeout)
	metrics := observability.NewInvocationMetrics("live")
	session := live.NewSession(dialer, live.OptionsFromConfig(c), logger, metrics)

	result, err := session.Run(ctx, liveFlags.text)
	logger.Debug().Ints("close_codes", metrics.CloseCodes()).Dur("elapsed", metrics.Elapsed()).Msg("Live session finished")
	if err != nil {
		return err
	}

	if !result.Written {
		fmt.Fprintln(cmd.OutOrStdout(), "No audio chunks received, file not saved.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d chunks, %d bytes of audio, %d Hz)\n",
		result.OutputPath, result.Chunks, result.DataBytes, result.SampleRate)
	return nil
}
