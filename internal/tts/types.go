package tts

import (
	"context"
	"strings"
)

// AudioChunk is a decoded PCM payload returned by the API
type AudioChunk struct {
	Data       []byte // Raw 16-bit little-endian PCM
	SampleRate int    // Sample rate in Hz (24000 unless the mime type says otherwise)
	Channels   int    // Number of channels (1 for mono)
	MimeType   string // Mime type as reported by the API, e.g. audio/pcm;rate=24000
}

// SpeechRequest describes one batch synthesis call
type SpeechRequest struct {
	Text   string
	Voice  string // Prebuilt voice name, falls back to the configured voice
	Model  string // Falls back to the configured TTS model
	Tone   string // Optional delivery direction, e.g. "cheerful"
	Accent string // Optional accent direction, e.g. "British"
}

// Synthesizer converts text to a single PCM payload
type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) (*AudioChunk, error)
}

// PrebuiltVoices lists the voice names the API is known to accept
var PrebuiltVoices = []string{
	"Aoede", "Charon", "Fenrir", "Kore", "Leda", "Orus", "Puck", "Zephyr",
}

// IsKnownVoice reports whether name is one of PrebuiltVoices (case-insensitive).
// Unknown names are still sent; the API has the final say.
func IsKnownVoice(name string) bool {
	for _, v := range PrebuiltVoices {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

// Wire types for the generateContent REST call

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}
