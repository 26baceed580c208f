package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/careerpath/blackboard-go/board"
	"github.com/careerpath/blackboard-go/graph"
	"github.com/careerpath/blackboard-go/graph/emit"
	"github.com/careerpath/blackboard-go/graph/model"
	"github.com/careerpath/blackboard-go/graph/model/anthropic"
	"github.com/careerpath/blackboard-go/graph/model/google"
	"github.com/careerpath/blackboard-go/graph/model/openai"
	"github.com/careerpath/blackboard-go/graph/nodes"
	"github.com/careerpath/blackboard-go/graph/retrieve"
	"github.com/careerpath/blackboard-go/graph/store"
	"github.com/careerpath/blackboard-go/graph/thread"
)

// System is a fully wired coaching engine plus the resources behind it.
// Close releases them; it is safe to call once the engine is idle.
type System struct {
	Engine    *graph.Engine
	Threads   thread.Registry
	Retriever retrieve.Retriever

	// Index is the in-process knowledge base; nil when retrieval is
	// backed by a remote service.
	Index *retrieve.MemoryIndex

	closers []func() error
}

// Close releases backend connections and flushes buffered emitters,
// in reverse construction order.
func (s *System) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build assembles the engine the config describes: storage and thread
// backends, the model provider, the emitter, the retrieval index, and all
// six workflow nodes.
func Build(ctx context.Context, cfg *Config) (*System, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sys := &System{}
	ok := false
	defer func() {
		if !ok {
			_ = sys.Close()
		}
	}()

	st, threads, err := buildStorage(cfg.Storage, sys)
	if err != nil {
		return nil, err
	}
	sys.Threads = threads

	chat, err := buildModel(ctx, cfg.Model, sys)
	if err != nil {
		return nil, err
	}

	emitter, err := buildEmitter(cfg.Emitter, sys)
	if err != nil {
		return nil, err
	}

	switch cfg.Retrieval.Backend {
	case RetrievalHTTP:
		var httpOpts []retrieve.HTTPOption
		if cfg.Retrieval.AuthToken != "" {
			httpOpts = append(httpOpts, retrieve.WithHeader("Authorization", "Bearer "+cfg.Retrieval.AuthToken))
		}
		sys.Retriever = retrieve.NewHTTPRetriever(cfg.Retrieval.URL, httpOpts...)
	default:
		sys.Index = retrieve.NewMemoryIndex()
		for _, doc := range cfg.Knowledge {
			if err := sys.Index.Add(doc.ID, doc.Text, doc.Metadata); err != nil {
				return nil, fmt.Errorf("knowledge doc %q: %w", doc.ID, err)
			}
		}
		sys.Retriever = sys.Index
	}

	opts := []graph.Option{
		graph.WithEmitter(emitter),
		graph.WithThreadRegistry(threads),
	}
	if cfg.Engine.Entry != "" {
		opts = append(opts, graph.WithEntryNode(cfg.Engine.Entry))
	}
	if cfg.Engine.MaxSteps > 0 {
		opts = append(opts, graph.WithMaxSteps(cfg.Engine.MaxSteps))
	}
	if cfg.Engine.NodeTimeout > 0 {
		opts = append(opts, graph.WithNodeTimeout(time.Duration(cfg.Engine.NodeTimeout)))
	}
	if cfg.Engine.InvokeTimeout > 0 {
		opts = append(opts, graph.WithInvokeTimeout(time.Duration(cfg.Engine.InvokeTimeout)))
	}

	eng, err := graph.New(st, opts...)
	if err != nil {
		return nil, err
	}

	nodeSet := []graph.Node{
		nodes.NewRouter(chat),
		nodes.NewGenerator(chat),
		nodes.NewAnalyzer(chat),
		nodes.NewTailorer(chat),
		nodes.NewGapFinder(chat, sys.Retriever),
		nodes.NewCoach(chat, sys.Retriever),
	}
	for _, n := range nodeSet {
		if err := eng.Register(n); err != nil {
			return nil, err
		}
	}

	sys.Engine = eng
	ok = true
	return sys, nil
}

func buildStorage(cfg StorageConfig, sys *System) (store.Store[board.State], thread.Registry, error) {
	switch cfg.Backend {
	case BackendMemory:
		return store.NewMemStore[board.State](), thread.NewMemRegistry(), nil

	case BackendSQLite:
		st, err := store.NewSQLiteStore[board.State](cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		sys.closers = append(sys.closers, st.Close)
		reg, err := thread.NewSQLiteRegistry(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite registry: %w", err)
		}
		sys.closers = append(sys.closers, reg.Close)
		return st, reg, nil

	case BackendMySQL:
		st, err := store.NewMySQLStore[board.State](cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql store: %w", err)
		}
		sys.closers = append(sys.closers, st.Close)
		// Thread identities stay local; MySQL holds only checkpoints.
		return st, thread.NewMemRegistry(), nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		sys.closers = append(sys.closers, client.Close)
		return store.NewRedisStore[board.State](client), thread.NewMemRegistry(), nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildModel(ctx context.Context, cfg ModelConfig, sys *System) (model.ChatModel, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}

	switch cfg.Provider {
	case ProviderMock:
		return &model.MockChatModel{}, nil
	case ProviderAnthropic:
		return anthropic.New(key, cfg.Model), nil
	case ProviderOpenAI:
		return openai.New(key, cfg.Model), nil
	case ProviderGoogle:
		m, err := google.New(ctx, key, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("google provider: %w", err)
		}
		sys.closers = append(sys.closers, m.Close)
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func buildEmitter(cfg EmitterConfig, sys *System) (emit.Emitter, error) {
	var inner emit.Emitter
	switch cfg.Kind {
	case EmitterNull:
		inner = emit.NewNullEmitter()
	case EmitterLog:
		inner = emit.NewLogEmitter(os.Stdout, false)
	case EmitterJSON:
		inner = emit.NewLogEmitter(os.Stdout, true)
	case EmitterZap:
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("zap logger: %w", err)
		}
		sys.closers = append(sys.closers, func() error {
			_ = logger.Sync() // Sync on stdout fails on some platforms
			return nil
		})
		inner = emit.NewZapEmitter(logger)
	default:
		return nil, fmt.Errorf("unknown emitter kind %q", cfg.Kind)
	}

	if cfg.Buffer > 0 {
		buffered := emit.NewBufferedEmitter(inner, cfg.Buffer)
		sys.closers = append(sys.closers, func() error {
			buffered.Close()
			return nil
		})
		return buffered, nil
	}
	return inner, nil
}
