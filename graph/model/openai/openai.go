// Package openai adapts OpenAI's Chat Completions API to the
// model.ChatModel interface via the official openai-go client.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/careerpath/blackboard-go/graph/model"
)

// ChatModel calls the Chat Completions API. Safe for concurrent use; the
// SDK retries transient errors itself.
type ChatModel struct {
	client *openai.Client
	model  string
}

// New creates a GPT-backed ChatModel, e.g. New(apiKey, "gpt-4o").
func New(apiKey, modelName string) *ChatModel {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{
		client: &client,
		model:  modelName,
	}
}

// Chat implements model.ChatModel.
func (c *ChatModel) Chat(ctx context.Context, system string, messages []model.Message) (string, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		params = append(params, openai.SystemMessage(system))
	}
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: params,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
