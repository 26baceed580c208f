// Package model abstracts the LLM chat providers the workflow nodes call.
//
// A ChatModel takes a system prompt and a conversation history and returns
// the assistant's reply as plain text. Provider subpackages (anthropic,
// openai, google) adapt the official SDKs to this interface; MockChatModel
// stands in for them in tests.
package model

import "context"

// Standard role constants, matching the conventions of the major providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of an LLM conversation.
type Message struct {
	Role    string
	Content string
}

// ChatModel is the boundary between workflow nodes and an LLM provider.
//
// Implementations convert the portable message format to the provider's
// wire format, respect context cancellation, and surface provider failures
// as errors; they never panic.
type ChatModel interface {
	// Chat sends the system prompt and conversation history to the
	// provider and returns the assistant's text reply.
	Chat(ctx context.Context, system string, messages []Message) (string, error)
}
