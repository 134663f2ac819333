package tts

import "fmt"

// FormulatePrompt wraps text in a natural-language delivery direction.
// Tone and accent are optional; an empty value leaves that clause out.
func FormulatePrompt(tone, accent, text string) string {
	switch {
	case tone != "" && accent != "":
		return fmt.Sprintf("Say with a %s accent, in a %s tone: \"%s\"", accent, tone, text)
	case accent != "":
		return fmt.Sprintf("Say with a %s accent: \"%s\"", accent, text)
	case tone != "":
		return fmt.Sprintf("Say in a %s tone: \"%s\"", tone, text)
	default:
		return fmt.Sprintf("Say: \"%s\"", text)
	}
}
