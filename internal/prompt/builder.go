// internal/prompt/builder.go

// Package prompt assembles token-budgeted completion requests from
// conversation history.
package prompt

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/merklechat/internal/sanitize"
	"github.com/user/merklechat/internal/types"
	"github.com/user/merklechat/pkg/llm"
)

// DefaultSystemPrompt is the fixed instruction message sent ahead of every
// conversation. It constrains the model to markdown-only answers so the
// rendering layer never has to guess at the reply format.
const DefaultSystemPrompt = "You are an expert in cryptocurrency knowledge. IMPORTANT: You must ALWAYS format your entire response using proper markdown syntax. Use headers (#), bullet points (-), code blocks (```), bold (**text**), italics (*text*), and other markdown elements. Never respond with plain text. Always answer briefly and to the point using only markdown formatting."

// Builder turns conversation history into an ordered message list for the
// completion API, dropping the oldest turns when the token budget is tight.
type Builder struct {
	tokenizer    *tiktoken.Tiktoken
	maxTokens    int
	reserve      int
	systemPrompt string
}

// New creates a Builder. model selects the tokenizer (falling back to
// cl100k_base for unknown models), maxTokens is the model's context window,
// and reserve is held back for the response. An empty systemPrompt uses
// DefaultSystemPrompt.
func New(model string, maxTokens, reserve int, systemPrompt string) (*Builder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Builder{
		tokenizer:    enc,
		maxTokens:    maxTokens,
		reserve:      reserve,
		systemPrompt: systemPrompt,
	}, nil
}

func (b *Builder) countTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Build assembles the prompt for generating the reply to targetID.
//
// Ordering follows the conversation array, never timestamps: the system
// instruction, then each pair's sanitized user message, then its reply for
// pairs strictly before the target. The target's own (possibly empty)
// reply is never included as context for itself. When the history exceeds
// the input budget the oldest messages are dropped; the system instruction
// and the target's user message always survive.
func (b *Builder) Build(conversations []types.ConversationPair, targetID types.PairID) []llm.Message {
	targetIndex := -1
	for i, pair := range conversations {
		if pair.ID == targetID {
			targetIndex = i
			break
		}
	}
	if targetIndex < 0 {
		return nil
	}

	var history []llm.Message
	for _, pair := range conversations[:targetIndex] {
		if pair.User != nil && pair.User.Content != "" {
			history = append(history, llm.Message{
				Role:    string(types.SenderUser),
				Content: sanitize.Text(pair.User.Content),
			})
		}
		if pair.System != nil && pair.System.Content != "" {
			history = append(history, llm.Message{
				Role:    string(types.SenderSystem),
				Content: pair.System.Content,
			})
		}
	}

	target := conversations[targetIndex]
	var userMsg llm.Message
	if target.User != nil {
		userMsg = llm.Message{
			Role:    string(types.SenderUser),
			Content: sanitize.Text(target.User.Content),
		}
	}

	budget := b.maxTokens - b.reserve
	used := b.countTokens(b.systemPrompt) + b.countTokens(userMsg.Content)

	// Walk history newest-first, keeping the suffix that fits.
	keepFrom := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := b.countTokens(history[i].Content)
		if used+cost > budget {
			break
		}
		used += cost
		keepFrom = i
	}

	messages := make([]llm.Message, 0, 2+len(history)-keepFrom)
	messages = append(messages, llm.Message{Role: string(types.SenderSystem), Content: b.systemPrompt})
	messages = append(messages, history[keepFrom:]...)
	messages = append(messages, userMsg)
	return messages
}
