package openai

import "testing"

func TestNew(t *testing.T) {
	c := New("test-key", "gpt-4o")
	if c.client == nil || c.model != "gpt-4o" {
		t.Fatalf("New returned %+v", c)
	}
}
