package llm

import "context"

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request
// formatting, authentication, and response parsing.
type Provider interface {
	// Complete sends a chat completion request and returns the full response.
	Complete(ctx context.Context, messages []Message) (*Response, error)

	// Stream sends a chat completion request and returns a channel of
	// incremental deltas. Cancelling ctx stops the stream; the consumer
	// sees the cancellation as a final Delta carrying context.Canceled.
	Stream(ctx context.Context, messages []Message) (<-chan Delta, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Configured reports whether the provider has enough configuration to
// attempt a request. Checked before any send so a missing key surfaces as
// guidance rather than a failed call.
func (c *Config) Configured() bool {
	return c != nil && c.APIKey != "" && c.Model != ""
}
