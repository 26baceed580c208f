package anthropic

import (
	"testing"

	"github.com/careerpath/blackboard-go/graph/model"
)

func TestNew(t *testing.T) {
	c := New("test-key", "claude-3-5-sonnet-20241022")
	if c.client == nil || c.model != "claude-3-5-sonnet-20241022" {
		t.Fatalf("New returned %+v", c)
	}
	if c.maxTokens != defaultMaxTokens {
		t.Errorf("maxTokens = %d", c.maxTokens)
	}
}

func TestConvertMessagesSkipsSystemRole(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleSystem, Content: "be helpful"},
		{Role: model.RoleUser, Content: "hello"},
		{Role: model.RoleAssistant, Content: "hi there"},
	}
	out := convertMessages(msgs)
	if len(out) != 2 {
		t.Fatalf("converted %d messages, want 2 (system turns are a top-level param)", len(out))
	}
}
