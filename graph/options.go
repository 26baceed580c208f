package graph

import (
	"time"

	"github.com/careerpath/blackboard-go/graph/emit"
	"github.com/careerpath/blackboard-go/graph/thread"
)

// DefaultMaxSteps bounds a single run when no override is configured.
// Routing loops (router -> node -> router -> ...) are normal; this is the
// safety net for a signal cycle that never converges.
const DefaultMaxSteps = 64

// DefaultEntryNode is where routing lands when no signal points elsewhere.
const DefaultEntryNode = "router"

// Option configures an Engine at construction time.
type Option func(*engineConfig) error

type engineConfig struct {
	entry         string
	maxSteps      int
	nodeTimeout   time.Duration
	invokeTimeout time.Duration
	emitter       emit.Emitter
	metrics       *Metrics
	threads       thread.Registry
}

// WithEntryNode overrides the hub node every run starts from and every
// unroutable signal falls back to.
func WithEntryNode(nodeID string) Option {
	return func(c *engineConfig) error {
		if nodeID == "" {
			return &EngineError{Message: "entry node id cannot be empty", Code: "INVALID_OPTION"}
		}
		c.entry = nodeID
		return nil
	}
}

// WithMaxSteps overrides DefaultMaxSteps for every run.
func WithMaxSteps(n int) Option {
	return func(c *engineConfig) error {
		if n <= 0 {
			return &EngineError{Message: "max steps must be positive", Code: "INVALID_OPTION"}
		}
		c.maxSteps = n
		return nil
	}
}

// WithNodeTimeout bounds each node execution. A node that overruns is
// abandoned; its in-flight patch is discarded and the step is recorded as
// an error signal instead. Zero disables the bound.
func WithNodeTimeout(d time.Duration) Option {
	return func(c *engineConfig) error {
		if d < 0 {
			return &EngineError{Message: "node timeout cannot be negative", Code: "INVALID_OPTION"}
		}
		c.nodeTimeout = d
		return nil
	}
}

// WithInvokeTimeout bounds a whole Invoke call, covering every step and
// checkpoint write within it. Zero disables the bound.
func WithInvokeTimeout(d time.Duration) Option {
	return func(c *engineConfig) error {
		if d < 0 {
			return &EngineError{Message: "invoke timeout cannot be negative", Code: "INVALID_OPTION"}
		}
		c.invokeTimeout = d
		return nil
	}
}

// WithEmitter routes observability events to the given emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(c *engineConfig) error {
		c.emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *engineConfig) error {
		c.metrics = m
		return nil
	}
}

// WithThreadRegistry attaches a registry so successful runs refresh the
// thread's recency ordering. Optional; the engine works without one.
func WithThreadRegistry(r thread.Registry) Option {
	return func(c *engineConfig) error {
		c.threads = r
		return nil
	}
}
