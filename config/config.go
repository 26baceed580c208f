// Package config loads the YAML file that wires a complete coaching engine:
// which checkpoint backend to use, engine limits, the language-model
// provider, the emitter, and an optional seed knowledge base for retrieval.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
)

// Model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderMock      = "mock"
)

// Emitter kinds.
const (
	EmitterNull = "null"
	EmitterLog  = "log"
	EmitterJSON = "json"
	EmitterZap  = "zap"
)

// Retrieval backends.
const (
	RetrievalMemory = "memory"
	RetrievalHTTP   = "http"
)

// Config is the top-level YAML document.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Engine    EngineConfig    `yaml:"engine"`
	Model     ModelConfig     `yaml:"model"`
	Emitter   EmitterConfig   `yaml:"emitter"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Knowledge []KnowledgeDoc  `yaml:"knowledge,omitempty"`
}

// StorageConfig selects the checkpoint and thread backend.
//
// Checkpoints are durable on every backend except memory. Thread
// identities are durable only on sqlite: the mysql and redis backends
// pair the checkpoint store with an in-process registry, so thread
// metadata (owner, title, recency) is lost on restart while the
// checkpoint history itself survives. Pick sqlite when thread
// identities must outlive the process.
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite, mysql, redis

	// Path is the database file for the sqlite backend.
	Path string `yaml:"path,omitempty"`
	// DSN is the connection string for the mysql backend.
	DSN string `yaml:"dsn,omitempty"`
	// Addr, Password, DB configure the redis backend.
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// EngineConfig carries execution-loop limits. Durations use Go syntax
// ("30s", "2m"); zero means the engine default.
type EngineConfig struct {
	Entry         string   `yaml:"entry,omitempty"`
	MaxSteps      int      `yaml:"max_steps,omitempty"`
	NodeTimeout   Duration `yaml:"node_timeout,omitempty"`
	InvokeTimeout Duration `yaml:"invoke_timeout,omitempty"`
}

// Duration is a time.Duration that decodes from YAML strings ("30s", "2m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ModelConfig selects and keys the language-model provider. APIKeyEnv names
// an environment variable consulted when APIKey is empty, so keys can stay
// out of the file.
type ModelConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// EmitterConfig selects the event sink. Buffer > 0 wraps the sink in a
// non-blocking buffered emitter of that capacity.
type EmitterConfig struct {
	Kind   string `yaml:"kind,omitempty"`
	Buffer int    `yaml:"buffer,omitempty"`
}

// RetrievalConfig selects where grounding documents come from: the
// in-process index (seeded from Knowledge) or a remote search service.
type RetrievalConfig struct {
	Backend string `yaml:"backend,omitempty"` // memory, http

	// URL and AuthToken configure the http backend.
	URL       string `yaml:"url,omitempty"`
	AuthToken string `yaml:"auth_token,omitempty"`
}

// KnowledgeDoc seeds the in-memory retrieval index.
type KnowledgeDoc struct {
	ID       string            `yaml:"id"`
	Text     string            `yaml:"text"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Model.Provider == "" {
		c.Model.Provider = ProviderMock
	}
	if c.Emitter.Kind == "" {
		c.Emitter.Kind = EmitterNull
	}
	if c.Retrieval.Backend == "" {
		c.Retrieval.Backend = RetrievalMemory
	}
}

// Validate rejects unknown enum values and missing backend parameters.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage: sqlite backend requires path")
		}
	case BackendMySQL:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage: mysql backend requires dsn")
		}
	case BackendRedis:
		if c.Storage.Addr == "" {
			return fmt.Errorf("storage: redis backend requires addr")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}

	switch c.Model.Provider {
	case ProviderMock:
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
		if c.modelKey() == "" {
			return fmt.Errorf("model: provider %q requires api_key or api_key_env", c.Model.Provider)
		}
		if c.Model.Model == "" {
			return fmt.Errorf("model: provider %q requires model", c.Model.Provider)
		}
	default:
		return fmt.Errorf("model: unknown provider %q", c.Model.Provider)
	}

	switch c.Emitter.Kind {
	case EmitterNull, EmitterLog, EmitterJSON, EmitterZap:
	default:
		return fmt.Errorf("emitter: unknown kind %q", c.Emitter.Kind)
	}
	if c.Emitter.Buffer < 0 {
		return fmt.Errorf("emitter: buffer must be >= 0")
	}

	if c.Engine.MaxSteps < 0 {
		return fmt.Errorf("engine: max_steps must be >= 0")
	}

	switch c.Retrieval.Backend {
	case RetrievalMemory:
	case RetrievalHTTP:
		if c.Retrieval.URL == "" {
			return fmt.Errorf("retrieval: http backend requires url")
		}
		if len(c.Knowledge) > 0 {
			return fmt.Errorf("retrieval: knowledge docs only apply to the memory backend")
		}
	default:
		return fmt.Errorf("retrieval: unknown backend %q", c.Retrieval.Backend)
	}

	for i, doc := range c.Knowledge {
		if doc.ID == "" || doc.Text == "" {
			return fmt.Errorf("knowledge[%d]: id and text are required", i)
		}
	}
	return nil
}

// modelKey resolves the provider API key, preferring the inline value.
func (c *Config) modelKey() string {
	if c.Model.APIKey != "" {
		return c.Model.APIKey
	}
	if c.Model.APIKeyEnv != "" {
		return os.Getenv(c.Model.APIKeyEnv)
	}
	return ""
}
