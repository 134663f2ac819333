package live

import (
	"encoding/json"
	"strings"
)

// Client messages use the snake_case field names of the Live wire protocol.

type setupMessage struct {
	Setup setup `json:"setup"`
}

type setup struct {
	Model            string           `json:"model"`
	GenerationConfig generationConfig `json:"generation_config"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"response_modalities"`
	SpeechConfig       speechConfig `json:"speech_config"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voice_config"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuilt_voice_config"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voice_name"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"client_content"`
}

type clientContent struct {
	Turns        []turn `json:"turns"`
	TurnComplete bool   `json:"turn_complete"`
}

type turn struct {
	Role  string     `json:"role"`
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

// Server messages arrive in camelCase.

type serverMessage struct {
	SetupComplete json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *serverContent  `json:"serverContent,omitempty"`
	GoAway        json.RawMessage `json:"goAway,omitempty"`
}

type serverContent struct {
	ModelTurn    *modelTurn `json:"modelTurn,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
	Interrupted  bool       `json:"interrupted,omitempty"`
}

type modelTurn struct {
	Parts []serverPart `json:"parts"`
}

type serverPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

func newSetupMessage(model, voice string) setupMessage {
	return setupMessage{Setup: setup{
		Model: "models/" + strings.TrimPrefix(model, "models/"),
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	}}
}

func newTextTurn(text string) clientContentMessage {
	return clientContentMessage{ClientContent: clientContent{
		Turns: []turn{{
			Role:  "user",
			Parts: []textPart{{Text: text}},
		}},
		TurnComplete: true,
	}}
}
