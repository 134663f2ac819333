package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/gemini-voice/internal/config"
	"github.com/lexiqai/gemini-voice/internal/observability"
)

var (
	// ErrNoAudio is returned when the response carries no candidates or no inline audio
	ErrNoAudio = errors.New("no audio in response")
	// ErrEmptyText is returned before any request is made for blank input
	ErrEmptyText = errors.New("text must not be empty")
)

// APIError is a non-200 response from the REST API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API returned status %d: %s", e.StatusCode, e.Body)
}

// TextResponseError is returned when the model answered with text instead of audio
type TextResponseError struct {
	Text string
}

func (e *TextResponseError) Error() string {
	return fmt.Sprintf("model returned text instead of audio: %s", e.Text)
}

// GeminiClient implements Synthesizer using the generateContent REST endpoint
type GeminiClient struct {
	config     *config.Config
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewGeminiClient creates a new batch TTS client
func NewGeminiClient(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) *GeminiClient {
	return &GeminiClient{
		config:     cfg,
		apiKey:     cfg.GeminiAPIKey,
		baseURL:    strings.TrimRight(cfg.GeminiAPIBaseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
		metrics:    metrics,
	}
}

// Synthesize sends one generateContent request and returns the first inline audio part
func (c *GeminiClient) Synthesize(ctx context.Context, req SpeechRequest) (*AudioChunk, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	voice := req.Voice
	if voice == "" {
		voice = c.config.Voice
	}
	model := req.Model
	if model == "" {
		model = c.config.TTSModel
	}

	prompt := FormulatePrompt(req.Tone, req.Accent, req.Text)
	c.logger.Debug().
		Str("model", model).
		Str("voice", voice).
		Str("prompt", prompt).
		Msg("Sending generateContent request")

	reqBody := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: prompt}},
		}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	}

	c.metrics.RecordRequestStart()
	chunk, err := c.generate(ctx, model, reqBody)
	c.metrics.RecordRequestEnd(err == nil)
	if err != nil {
		c.metrics.RecordError(errorType(err), "tts")
		return nil, err
	}

	c.metrics.RecordAudioBytes("received", len(chunk.Data))
	c.logger.Info().
		Int("bytes", len(chunk.Data)).
		Int("sample_rate", chunk.SampleRate).
		Str("mime_type", chunk.MimeType).
		Msg("Received audio")

	return chunk, nil
}

func (c *GeminiClient) generate(ctx context.Context, model string, reqBody generateRequest) (*AudioChunk, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return c.extractAudio(genResp)
}

// extractAudio picks the first part of the first candidate that carries inline data
func (c *GeminiClient) extractAudio(resp generateResponse) (*AudioChunk, error) {
	if len(resp.Candidates) == 0 {
		return nil, ErrNoAudio
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil {
			text.WriteString(p.Text)
			continue
		}

		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline audio: %w", err)
		}
		return &AudioChunk{
			Data:       data,
			SampleRate: ParseSampleRate(p.InlineData.MimeType, c.config.SampleRate),
			Channels:   1,
			MimeType:   p.InlineData.MimeType,
		}, nil
	}

	if text.Len() > 0 {
		return nil, &TextResponseError{Text: text.String()}
	}
	return nil, fmt.Errorf("%w (finish reason: %s)", ErrNoAudio, resp.Candidates[0].FinishReason)
}

// ParseSampleRate reads the rate parameter of an audio/pcm mime type,
// e.g. "audio/pcm;rate=24000". fallback is returned when there is none.
func ParseSampleRate(mimeType string, fallback int) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return fallback
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}

func errorType(err error) string {
	var apiErr *APIError
	var textErr *TextResponseError
	switch {
	case errors.As(err, &apiErr):
		return "api"
	case errors.As(err, &textErr), errors.Is(err, ErrNoAudio):
		return "protocol"
	default:
		return "transport"
	}
}
