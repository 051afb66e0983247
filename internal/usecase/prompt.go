package usecase

import "strings"

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a sharp, witty AI assistant on a live stream. " +
	"Keep responses concise, 1-3 sentences max unless asked to elaborate. " +
	"Be direct, opinionated, and engaging. No corporate speak."

const (
	clarificationMessage = "I didn't catch that. Could you repeat?"
	toolCallMessage      = "I don't have that capability wired up yet."
	fallbackMessage      = "Give me a moment, my brain hiccupped."
)

func normalizeSystemPrompt(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSystemPrompt
	}
	return s
}
