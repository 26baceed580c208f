// Package google adapts Google's Gemini API to the model.ChatModel
// interface via the official generative-ai-go client.
package google

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/careerpath/blackboard-go/graph/model"
)

// ChatModel calls the Gemini API. Safe for concurrent use.
type ChatModel struct {
	client *genai.Client
	model  string
}

// New creates a Gemini-backed ChatModel, e.g.
// New(ctx, apiKey, "gemini-1.5-pro"). The context governs client setup
// only, not later Chat calls.
func New(ctx context.Context, apiKey, modelName string) (*ChatModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &ChatModel{client: client, model: modelName}, nil
}

// Chat implements model.ChatModel.
//
// The last user turn is sent as the message; everything before it becomes
// chat-session history. Gemini names the assistant role "model".
func (c *ChatModel) Chat(ctx context.Context, system string, messages []model.Message) (string, error) {
	gm := c.client.GenerativeModel(c.model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	if len(messages) == 0 {
		return "", fmt.Errorf("google chat requires at least one message")
	}
	last := messages[len(messages)-1]

	session := gm.StartChat()
	for _, m := range messages[:len(messages)-1] {
		role := "user"
		if m.Role == model.RoleAssistant {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("google chat failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("google returned no candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text, nil
}

// Close releases the underlying client connection.
func (c *ChatModel) Close() error {
	return c.client.Close()
}
