// Package anthropic adapts Anthropic's Claude API to the model.ChatModel
// interface via the official anthropic-sdk-go client.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/careerpath/blackboard-go/graph/model"
)

const defaultMaxTokens = 4096

// ChatModel calls the Anthropic Messages API. Safe for concurrent use.
type ChatModel struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates a Claude-backed ChatModel, e.g.
// New(apiKey, "claude-3-5-sonnet-20241022").
func New(apiKey, modelName string) *ChatModel {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{
		client:    &client,
		model:     modelName,
		maxTokens: defaultMaxTokens,
	}
}

// Chat implements model.ChatModel.
func (c *ChatModel) Chat(ctx context.Context, system string, messages []model.Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  convertMessages(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic chat failed: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// convertMessages maps portable messages to the Messages API format.
// System-role turns are skipped: Anthropic carries the system prompt as a
// top-level parameter, not as a message.
func convertMessages(messages []model.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case model.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}
