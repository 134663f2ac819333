package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for a gemini-voice invocation
type Config struct {
	// Gemini API configuration
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiAPIBaseURL string `envconfig:"GEMINI_API_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiLiveURL    string `envconfig:"GEMINI_LIVE_URL" default:"wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"`

	// Model selection. The TTS model must support generateContent with audio output,
	// the live model must support bidiGenerateContent.
	TTSModel  string `envconfig:"GEMINI_TTS_MODEL" default:"gemini-2.5-flash-preview-tts"`
	LiveModel string `envconfig:"GEMINI_LIVE_MODEL" default:"gemini-2.5-flash-native-audio-preview-12-2025"`
	Voice     string `envconfig:"GEMINI_VOICE" default:"Puck"` // Prebuilt voice name

	// Audio output configuration
	SampleRate int    `envconfig:"AUDIO_SAMPLE_RATE" default:"24000"` // Used when the response mime type carries no rate
	Normalize  bool   `envconfig:"AUDIO_NORMALIZE" default:"true"`    // Peak-normalize to 95% before writing
	OutputFile string `envconfig:"OUTPUT_FILE" default:"output.wav"`

	// Live session configuration
	LiveEventQueueSize int           `envconfig:"LIVE_EVENT_QUEUE_SIZE" default:"64"`
	LiveDialTimeout    time.Duration `envconfig:"LIVE_DIAL_TIMEOUT" default:"45s"`

	// RequestTimeout bounds a whole invocation. Zero means no timeout.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"0s"`

	// Observability configuration
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`  // Log level: debug, info, warn, error
	LogPretty   bool   `envconfig:"LOG_PRETTY" default:"false"` // Pretty print logs (for development)
	MetricsFile string `envconfig:"METRICS_FILE" default:""`    // Prometheus textfile output, empty disables
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the fields envconfig cannot
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.LiveEventQueueSize <= 0 {
		return fmt.Errorf("LIVE_EVENT_QUEUE_SIZE must be positive, got %d", c.LiveEventQueueSize)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
