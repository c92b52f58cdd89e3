// internal/chat/errors.go
package chat

import (
	"errors"
	"strings"
)

// ErrBusy is returned when a submit/edit arrives while a response is
// already streaming. One stream per session; the caller should disable
// send affordances while streaming.
var ErrBusy = errors.New("a response is already streaming")

// ErrNotConfigured is returned when no API key or model is configured.
// Callers surface ConfigNotice instead of treating this as a failure.
var ErrNotConfigured = errors.New("completion API not configured")

// CancelledNotice is the informational error text set when the user
// cancels a streaming response. The partial content is kept.
const CancelledNotice = "Response generation was cancelled"

// ConfigNotice explains how to fix a missing API configuration. Shown as
// a system message before any send is attempted, not raised as an error.
const ConfigNotice = "No API key or model is configured. Set OPENAI_API_KEY in your environment, or add llm.api_key and llm.model to the config file, then start a new chat."

// UserMessage maps a completion API failure to a stable, readable
// message. Status-code markers are checked in precedence order; anything
// unrecognized falls through to the raw message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "401"):
		return "Invalid API key. Please configure your OpenAI API key properly."
	case strings.Contains(msg, "429"):
		return "Rate limit exceeded. Please wait a moment and try again."
	case strings.Contains(msg, "403"):
		return "Access forbidden. Please check your API key permissions."
	case strings.Contains(msg, "404"):
		return "Model not found. Please check your OpenAI model configuration."
	case strings.Contains(lower, "network"), strings.Contains(lower, "fetch"),
		strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		return "Network error. Please check your internet connection and try again."
	case strings.Contains(lower, "timeout"):
		return "Request timed out. Please try again."
	case msg != "":
		return msg
	default:
		return "Something went wrong. Please try again."
	}
}
