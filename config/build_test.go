package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/careerpath/blackboard-go/board"
)

func TestBuildMemorySystemEndToEnd(t *testing.T) {
	cfg, err := Parse([]byte(`
engine:
  max_steps: 8
knowledge:
  - id: star
    text: Behavioral interview preparation with the STAR method
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	sys, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer sys.Close()

	if sys.Index.Len() != 1 {
		t.Errorf("index size = %d", sys.Index.Len())
	}

	// The mock provider answers "" which the router cannot map to an
	// intent, so a single clarification turn terminates the run.
	state, err := sys.Engine.Invoke(context.Background(), "t1", board.Patch{
		UserID: "u1",
		ConversationHistory: []board.Message{
			{Role: board.RoleUser, Content: "hello"},
		},
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if state.RoutingSignal != board.SignalDone {
		t.Errorf("signal = %q", state.RoutingSignal)
	}
	if len(state.ConversationHistory) != 2 {
		t.Errorf("history = %+v", state.ConversationHistory)
	}

	// The registry only tracks threads created through it; Invoke
	// touches but does not create.
	th, err := sys.Threads.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if th != nil {
		t.Errorf("uncreated thread appeared in registry: %+v", th)
	}
}

func TestBuildSQLiteSystem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coach.db")
	cfg, err := Parse([]byte("storage:\n  backend: sqlite\n  path: " + path + "\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	sys, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	th, err := sys.Threads.Create(context.Background(), "u1", "Interview prep", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := sys.Engine.Invoke(context.Background(), th.ID, board.Patch{
		UserID: "u1",
		ConversationHistory: []board.Message{
			{Role: board.RoleUser, Content: "hello"},
		},
	}); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	history, err := sys.Engine.History(context.Background(), th.ID)
	if err != nil || len(history) == 0 {
		t.Fatalf("History = %d, %v", len(history), err)
	}

	if err := sys.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestBuildHTTPRetrievalBackend(t *testing.T) {
	cfg, err := Parse([]byte("retrieval:\n  backend: http\n  url: http://kb.internal/search\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	sys, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer sys.Close()

	if sys.Index != nil {
		t.Error("in-process index built for http retrieval")
	}
	if sys.Retriever == nil {
		t.Error("no retriever wired")
	}
}

func TestBuildRejectsNilAndInvalid(t *testing.T) {
	if _, err := Build(context.Background(), nil); err == nil {
		t.Error("nil config accepted")
	}
	bad := &Config{Storage: StorageConfig{Backend: "dynamo"}}
	if _, err := Build(context.Background(), bad); err == nil {
		t.Error("invalid config accepted")
	}
}
