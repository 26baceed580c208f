package model

import (
	"context"
	"errors"
	"testing"
)

func TestMockChatModelSequence(t *testing.T) {
	mock := &MockChatModel{Responses: []string{"first", "second"}}
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		got, err := mock.Chat(ctx, "sys", []Message{{Role: RoleUser, Content: "hi"}})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if got != want {
			t.Fatalf("Chat = %q, want %q", got, want)
		}
	}
	if mock.CallCount() != 3 {
		t.Errorf("CallCount = %d, want 3", mock.CallCount())
	}
}

func TestMockChatModelRecordsCalls(t *testing.T) {
	mock := &MockChatModel{Responses: []string{"ok"}}
	msgs := []Message{
		{Role: RoleUser, Content: "analyze my resume"},
		{Role: RoleAssistant, Content: "sure"},
	}
	if _, err := mock.Chat(context.Background(), "coach prompt", msgs); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if len(mock.Calls) != 1 {
		t.Fatalf("recorded %d calls, want 1", len(mock.Calls))
	}
	call := mock.Calls[0]
	if call.System != "coach prompt" || len(call.Messages) != 2 || call.Messages[0].Content != "analyze my resume" {
		t.Errorf("recorded call = %+v", call)
	}
}

func TestMockChatModelErr(t *testing.T) {
	boom := errors.New("provider down")
	mock := &MockChatModel{Err: boom}

	_, err := mock.Chat(context.Background(), "", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if mock.CallCount() != 1 {
		t.Errorf("failed call was not recorded")
	}
}

func TestMockChatModelContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &MockChatModel{Responses: []string{"never"}}
	if _, err := mock.Chat(ctx, "", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if mock.CallCount() != 0 {
		t.Errorf("cancelled call should not be recorded")
	}
}

func TestMockChatModelReset(t *testing.T) {
	mock := &MockChatModel{Responses: []string{"a", "b"}}
	ctx := context.Background()

	_, _ = mock.Chat(ctx, "", nil)
	_, _ = mock.Chat(ctx, "", nil)
	mock.Reset()

	if mock.CallCount() != 0 {
		t.Fatalf("CallCount after Reset = %d", mock.CallCount())
	}
	got, _ := mock.Chat(ctx, "", nil)
	if got != "a" {
		t.Fatalf("Chat after Reset = %q, want %q", got, "a")
	}
}
