package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseFullDocument(t *testing.T) {
	doc := `
storage:
  backend: sqlite
  path: /var/lib/coach/coach.db
engine:
  entry: router
  max_steps: 32
  node_timeout: 45s
  invoke_timeout: 2m
model:
  provider: anthropic
  model: claude-sonnet-4-20250514
  api_key: sk-test
emitter:
  kind: zap
  buffer: 256
knowledge:
  - id: star
    text: Behavioral interview preparation with the STAR method
    metadata:
      topic: interviews
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.Path != "/var/lib/coach/coach.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Engine.MaxSteps != 32 {
		t.Errorf("max_steps = %d", cfg.Engine.MaxSteps)
	}
	if time.Duration(cfg.Engine.NodeTimeout) != 45*time.Second {
		t.Errorf("node_timeout = %v", cfg.Engine.NodeTimeout)
	}
	if time.Duration(cfg.Engine.InvokeTimeout) != 2*time.Minute {
		t.Errorf("invoke_timeout = %v", cfg.Engine.InvokeTimeout)
	}
	if cfg.Model.Provider != ProviderAnthropic || cfg.Model.APIKey != "sk-test" {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Emitter.Kind != EmitterZap || cfg.Emitter.Buffer != 256 {
		t.Errorf("emitter = %+v", cfg.Emitter)
	}
	if len(cfg.Knowledge) != 1 || cfg.Knowledge[0].Metadata["topic"] != "interviews" {
		t.Errorf("knowledge = %+v", cfg.Knowledge)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.Model.Provider != ProviderMock {
		t.Errorf("provider = %q", cfg.Model.Provider)
	}
	if cfg.Emitter.Kind != EmitterNull {
		t.Errorf("emitter = %q", cfg.Emitter.Kind)
	}
}

func TestParseRejectsInvalidDuration(t *testing.T) {
	_, err := Parse([]byte("engine:\n  node_timeout: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown backend", "storage:\n  backend: dynamo\n", "unknown backend"},
		{"sqlite without path", "storage:\n  backend: sqlite\n", "requires path"},
		{"mysql without dsn", "storage:\n  backend: mysql\n", "requires dsn"},
		{"redis without addr", "storage:\n  backend: redis\n", "requires addr"},
		{"unknown provider", "model:\n  provider: llama\n", "unknown provider"},
		{"provider without key", "model:\n  provider: openai\n  model: gpt-4o\n", "api_key"},
		{"provider without model", "model:\n  provider: openai\n  api_key: k\n", "requires model"},
		{"unknown emitter", "emitter:\n  kind: syslog\n", "unknown kind"},
		{"negative buffer", "emitter:\n  kind: log\n  buffer: -1\n", "buffer"},
		{"knowledge without id", "knowledge:\n  - text: orphaned\n", "knowledge[0]"},
		{"unknown retrieval backend", "retrieval:\n  backend: vector\n", "unknown backend"},
		{"http retrieval without url", "retrieval:\n  backend: http\n", "requires url"},
		{"knowledge with http retrieval", "retrieval:\n  backend: http\n  url: http://kb\nknowledge:\n  - id: a\n    text: b\n", "memory backend"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestAPIKeyEnvResolution(t *testing.T) {
	t.Setenv("COACH_TEST_KEY", "from-env")
	cfg, err := Parse([]byte("model:\n  provider: openai\n  model: gpt-4o\n  api_key_env: COACH_TEST_KEY\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cfg.modelKey(); got != "from-env" {
		t.Errorf("modelKey = %q", got)
	}
}
