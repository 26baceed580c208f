package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/careerpath/blackboard-go/board"
	"github.com/careerpath/blackboard-go/graph/emit"
	"github.com/careerpath/blackboard-go/graph/store"
	"github.com/careerpath/blackboard-go/graph/thread"
)

// Engine orchestrates durable, resumable workflow runs over the shared
// conversation state.
//
// The engine owns:
//   - the node registry and the entry (hub) node
//   - hub-and-spoke routing on board.Signal values
//   - the reducer merge of every node patch
//   - a checkpoint write after every step, terminal steps included
//   - per-thread write serialization: two runs on the same thread never
//     interleave, runs on different threads proceed concurrently
//
// Construct with New, register nodes, then drive it with Invoke / Stream /
// GetState / UpdateState. All methods are safe for concurrent use.
type Engine struct {
	mu    sync.RWMutex
	nodes map[string]Node

	store   store.Store[board.State]
	threads thread.Registry
	emitter emit.Emitter
	metrics *Metrics

	entry         string
	maxSteps      int
	nodeTimeout   time.Duration
	invokeTimeout time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Step is one entry of a Stream: the state after a node executed and was
// checkpointed. A run-level failure is delivered as the final Step with Err
// set, after which the channel closes.
type Step struct {
	Step         int
	Node         string
	CheckpointID string
	State        board.State
	Err          error
}

// New creates an Engine on the given checkpoint store.
func New(st store.Store[board.State], opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, &EngineError{Message: "checkpoint store is required", Code: "MISSING_STORE"}
	}

	cfg := engineConfig{
		entry:    DefaultEntryNode,
		maxSteps: DefaultMaxSteps,
		emitter:  emit.NewNullEmitter(),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Engine{
		nodes:         make(map[string]Node),
		store:         st,
		threads:       cfg.threads,
		emitter:       cfg.emitter,
		metrics:       cfg.metrics,
		entry:         cfg.entry,
		maxSteps:      cfg.maxSteps,
		nodeTimeout:   cfg.nodeTimeout,
		invokeTimeout: cfg.invokeTimeout,
		locks:         make(map[string]*sync.Mutex),
	}, nil
}

// Register adds a node to the registry. Node names must be unique.
func (e *Engine) Register(n Node) error {
	if n == nil {
		return &EngineError{Message: "node cannot be nil", Code: "INVALID_NODE"}
	}
	if n.Name() == "" {
		return &EngineError{Message: "node name cannot be empty", Code: "INVALID_NODE"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[n.Name()]; exists {
		return &EngineError{Message: "duplicate node: " + n.Name(), Code: "DUPLICATE_NODE"}
	}
	e.nodes[n.Name()] = n
	return nil
}

func (e *Engine) node(name string) (Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.nodes[name]
	return n, ok
}

func (e *Engine) hasNode(name string) bool {
	_, ok := e.node(name)
	return ok
}

// threadLock returns the mutex serializing writes for one thread.
func (e *Engine) threadLock(threadID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	lock, ok := e.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[threadID] = lock
	}
	return lock
}

// Invoke applies the input patch to the thread's state and runs the
// workflow loop until a terminal signal, returning the final state.
//
// A thread with no history starts from a fresh state; a thread with
// checkpoints resumes from its latest one, so an interrupted run picks up
// at the node its last signal pointed to. The input usually carries the
// new user message and, for fresh threads, the user id.
func (e *Engine) Invoke(ctx context.Context, threadID string, input board.Patch) (board.State, error) {
	var zero board.State
	if threadID == "" {
		return zero, ErrIdentityRequired
	}
	if !e.hasNode(e.entry) {
		return zero, &EngineError{Message: "entry node not registered: " + e.entry, Code: "NODE_NOT_FOUND"}
	}
	if err := board.ValidatePatch(input, e.hasNode); err != nil {
		return zero, &EngineError{Message: "invalid input patch: " + err.Error(), Code: "INVALID_PATCH"}
	}

	if e.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.invokeTimeout)
		defer cancel()
	}

	lock := e.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	return e.run(ctx, threadID, input, nil)
}

// Stream runs the workflow like Invoke but delivers the state after every
// step on the returned channel. The channel closes when the run reaches a
// terminal signal or fails; a failure arrives as a final Step with Err set.
func (e *Engine) Stream(ctx context.Context, threadID string, input board.Patch) (<-chan Step, error) {
	if threadID == "" {
		return nil, ErrIdentityRequired
	}
	if !e.hasNode(e.entry) {
		return nil, &EngineError{Message: "entry node not registered: " + e.entry, Code: "NODE_NOT_FOUND"}
	}
	if err := board.ValidatePatch(input, e.hasNode); err != nil {
		return nil, &EngineError{Message: "invalid input patch: " + err.Error(), Code: "INVALID_PATCH"}
	}

	steps := make(chan Step)
	go func() {
		defer close(steps)

		runCtx := ctx
		if e.invokeTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, e.invokeTimeout)
			defer cancel()
		}

		lock := e.threadLock(threadID)
		lock.Lock()
		defer lock.Unlock()

		if _, err := e.run(runCtx, threadID, input, steps); err != nil {
			select {
			case steps <- Step{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return steps, nil
}

// run is the execution loop. The caller holds the thread lock.
func (e *Engine) run(ctx context.Context, threadID string, input board.Patch, sink chan<- Step) (board.State, error) {
	var zero board.State

	state, parentID, err := e.loadOrCreate(ctx, threadID, input.UserID)
	if err != nil {
		return zero, err
	}
	state = board.Merge(state, input)

	e.emitter.Emit(emit.Event{ThreadID: threadID, Msg: "run_start",
		Meta: map[string]interface{}{"resume": parentID != ""}})
	e.metrics.runStarted()

	current := e.resolveNext(state.RoutingSignal)
	for step := 1; ; step++ {
		if step > e.maxSteps {
			e.emitRunEnd(threadID, step, "max_steps", ErrMaxStepsExceeded)
			return zero, ErrMaxStepsExceeded
		}
		if ctx.Err() != nil {
			e.emitRunEnd(threadID, step, "cancelled", ctx.Err())
			return zero, ctx.Err()
		}

		nodeImpl, ok := e.node(current)
		if !ok {
			// resolveNext only yields registered nodes; this guards
			// against nodes unregistered in a racing configuration.
			err := &EngineError{Message: "node not found during execution: " + current, Code: "NODE_NOT_FOUND"}
			e.emitRunEnd(threadID, step, "error", err)
			return zero, err
		}

		e.emitter.Emit(emit.Event{ThreadID: threadID, Step: step, NodeID: current, Msg: "node_start"})

		started := time.Now()
		patch, execErr := e.executeNode(ctx, nodeImpl, state)
		elapsed := time.Since(started)

		if execErr == nil {
			// Node patches skip the registry check: a route target that
			// is not registered merges as-is and resolveNext lands the
			// run back on the hub instead of halting the conversation.
			if verr := board.ValidatePatch(patch, nil); verr != nil {
				execErr = verr
			}
		}
		if execErr != nil {
			if errors.Is(execErr, context.Canceled) || ctx.Err() != nil {
				e.emitRunEnd(threadID, step, "cancelled", ctx.Err())
				return zero, ctx.Err()
			}
			// A node that outran its deadline writes nothing: the step is
			// not checkpointed and the caller gets the timeout error. The
			// last durable checkpoint remains the thread's state.
			var engErr *EngineError
			if errors.As(execErr, &engErr) && engErr.Code == "NODE_TIMEOUT" {
				e.emitRunEnd(threadID, step, "timeout", execErr)
				return zero, execErr
			}
			// An ill-formed patch contributes an error signal instead;
			// the run still checkpoints and converges.
			patch = failurePatch(current, execErr)
			e.emitter.Emit(emit.Event{ThreadID: threadID, Step: step, NodeID: current, Msg: "node_error",
				Meta: map[string]interface{}{"error": execErr.Error()}})
		}

		state = board.Merge(state, patch)
		e.metrics.stepExecuted(current, string(state.RoutingSignal), elapsed)

		checkpointID, err := e.store.Put(ctx, threadID, parentID, state,
			store.StepMetadata{Step: step, Source: "loop", Node: current})
		if err != nil {
			err = &EngineError{Message: "failed to save checkpoint: " + err.Error(), Code: "STORE_ERROR"}
			e.emitRunEnd(threadID, step, "error", err)
			return zero, err
		}
		parentID = checkpointID
		e.metrics.checkpointWritten()
		e.touchThread(ctx, threadID)

		e.emitter.Emit(emit.Event{ThreadID: threadID, Step: step, NodeID: current, Msg: "node_end",
			Meta: map[string]interface{}{
				"signal":        string(state.RoutingSignal),
				"checkpoint_id": checkpointID,
				"duration_ms":   elapsed.Milliseconds(),
			}})

		if sink != nil {
			select {
			case sink <- Step{Step: step, Node: current, CheckpointID: checkpointID, State: state}:
			case <-ctx.Done():
				e.emitRunEnd(threadID, step, "cancelled", ctx.Err())
				return zero, ctx.Err()
			}
		}

		if state.RoutingSignal.Terminal() {
			status := "done"
			if state.RoutingSignal == board.SignalError {
				status = "error"
			}
			e.emitRunEnd(threadID, step, status, nil)
			return state, nil
		}
		current = e.resolveNext(state.RoutingSignal)
	}
}

// GetState returns the thread's latest checkpointed state. A thread with
// no checkpoints yet yields an empty state carrying only the id.
func (e *Engine) GetState(ctx context.Context, threadID string) (board.State, error) {
	var zero board.State
	if threadID == "" {
		return zero, ErrIdentityRequired
	}

	cp, err := e.store.GetLatest(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return board.State{ThreadID: threadID}, nil
	}
	if err != nil {
		return zero, err
	}
	return cp.State, nil
}

// UpdateState merges a patch into the thread's state outside the workflow
// loop and checkpoints the result, returning the new checkpoint id. This is
// how callers seed profile data or correct state between runs.
func (e *Engine) UpdateState(ctx context.Context, threadID string, patch board.Patch) (string, error) {
	if threadID == "" {
		return "", ErrIdentityRequired
	}
	if err := board.ValidatePatch(patch, e.hasNode); err != nil {
		return "", &EngineError{Message: "invalid patch: " + err.Error(), Code: "INVALID_PATCH"}
	}

	lock := e.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	state, parentID, err := e.loadOrCreate(ctx, threadID, patch.UserID)
	if err != nil {
		return "", err
	}
	state = board.Merge(state, patch)

	checkpointID, err := e.store.Put(ctx, threadID, parentID, state,
		store.StepMetadata{Source: "update"})
	if err != nil {
		return "", &EngineError{Message: "failed to save checkpoint: " + err.Error(), Code: "STORE_ERROR"}
	}
	e.metrics.checkpointWritten()
	e.touchThread(ctx, threadID)
	e.emitter.Emit(emit.Event{ThreadID: threadID, Msg: "state_updated",
		Meta: map[string]interface{}{"checkpoint_id": checkpointID}})
	return checkpointID, nil
}

// Fork copies one historical checkpoint of a source thread into a new
// thread, so an alternative continuation can run without disturbing the
// original chain. The new thread starts its own chain at the copied state.
func (e *Engine) Fork(ctx context.Context, sourceThreadID, checkpointID, newThreadID string) (string, error) {
	if sourceThreadID == "" || newThreadID == "" {
		return "", ErrIdentityRequired
	}
	if sourceThreadID == newThreadID {
		return "", &EngineError{Message: "fork target must be a different thread", Code: "INVALID_FORK"}
	}

	cp, err := e.store.Get(ctx, sourceThreadID, checkpointID)
	if err != nil {
		return "", err
	}

	lock := e.threadLock(newThreadID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.store.GetLatest(ctx, newThreadID); err == nil {
		return "", &EngineError{Message: "fork target already has history: " + newThreadID, Code: "INVALID_FORK"}
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	state := cp.State
	state.ThreadID = newThreadID

	forkID, err := e.store.Put(ctx, newThreadID, "", state,
		store.StepMetadata{Step: cp.Meta.Step, Source: "fork", Node: cp.Meta.Node})
	if err != nil {
		return "", &EngineError{Message: "failed to save fork checkpoint: " + err.Error(), Code: "STORE_ERROR"}
	}
	e.metrics.checkpointWritten()
	e.touchThread(ctx, newThreadID)
	e.emitter.Emit(emit.Event{ThreadID: newThreadID, Msg: "thread_forked",
		Meta: map[string]interface{}{"source_thread": sourceThreadID, "source_checkpoint": checkpointID}})
	return forkID, nil
}

// History returns the thread's checkpoints newest-first.
func (e *Engine) History(ctx context.Context, threadID string) ([]store.Checkpoint[board.State], error) {
	if threadID == "" {
		return nil, ErrIdentityRequired
	}
	return e.store.List(ctx, threadID)
}

// loadOrCreate resumes from the latest checkpoint, or builds a fresh state
// for a thread with no history.
func (e *Engine) loadOrCreate(ctx context.Context, threadID, userID string) (board.State, string, error) {
	cp, err := e.store.GetLatest(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return board.New(threadID, userID), "", nil
	}
	if err != nil {
		return board.State{}, "", err
	}
	return cp.State, cp.CheckpointID, nil
}

// resolveNext maps a routing signal to the next node. This is a total
// function: route targets naming unregistered nodes, terminal signals, and
// the empty signal all land on the entry hub.
func (e *Engine) resolveNext(signal board.Signal) string {
	if target, ok := signal.Target(); ok && e.hasNode(target) {
		return target
	}
	return e.entry
}

// executeNode runs one node, bounding it by the configured node timeout.
// On timeout the node's goroutine is abandoned and its eventual patch
// discarded; the engine only ever merges patches it received in time.
func (e *Engine) executeNode(ctx context.Context, n Node, state board.State) (board.Patch, error) {
	if e.nodeTimeout <= 0 {
		return n.Execute(ctx, state), nil
	}

	nodeCtx, cancel := context.WithTimeout(ctx, e.nodeTimeout)
	defer cancel()

	patches := make(chan board.Patch, 1)
	go func() {
		patches <- n.Execute(nodeCtx, state)
	}()

	select {
	case patch := <-patches:
		return patch, nil
	case <-nodeCtx.Done():
		return board.Patch{}, &EngineError{
			Message: fmt.Sprintf("node %s exceeded timeout of %v", n.Name(), e.nodeTimeout),
			Code:    "NODE_TIMEOUT",
		}
	}
}

// failurePatch converts an engine-observed step failure into the same shape
// node-internal failures take: an assistant-visible notice and an error
// signal, so the run converges through the normal terminal path.
func failurePatch(node string, err error) board.Patch {
	return board.Patch{
		ConversationHistory: []board.Message{{
			Role:    board.RoleAssistant,
			Content: "Something went wrong while handling your request. Please try again.",
		}},
		ActiveNode:    node,
		RoutingSignal: board.SignalError,
		Metadata:      map[string]string{"lastError": err.Error()},
	}
}

func (e *Engine) emitRunEnd(threadID string, step int, status string, err error) {
	meta := map[string]interface{}{"status": status, "steps": step}
	if err != nil {
		meta["error"] = err.Error()
	}
	e.emitter.Emit(emit.Event{ThreadID: threadID, Msg: "run_end", Meta: meta})
	e.metrics.runFinished(status)
}

func (e *Engine) touchThread(ctx context.Context, threadID string) {
	if e.threads == nil {
		return
	}
	// Recency bookkeeping runs after every checkpoint write and must
	// never fail the write itself.
	_ = e.threads.Touch(ctx, threadID)
}
