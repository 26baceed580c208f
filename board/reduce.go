package board

import (
	"encoding/json"
	"fmt"
)

// Policy is the merge rule applied to one State field when a Patch is
// folded into the current state.
type Policy int

const (
	// PolicyReplace overwrites the previous value (last write wins).
	// Pointer fields replace only when the patch value is non-nil;
	// string fields only when non-empty.
	PolicyReplace Policy = iota

	// PolicyAppend concatenates new values onto the existing sequence in
	// arrival order. Map fields are unioned by key, new entries winning.
	PolicyAppend

	// PolicyImmutable is set at creation and never overwritten.
	PolicyImmutable
)

// String returns the policy name used in diagnostics and tests.
func (p Policy) String() string {
	switch p {
	case PolicyReplace:
		return "replace"
	case PolicyAppend:
		return "append"
	case PolicyImmutable:
		return "immutable"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Policies is the enumerated reducer table: JSON field name to merge policy.
// The policy is fixed per field, never per call. Merge and the state tests
// are both driven by this table, so adding a State field without an entry
// here fails TestPoliciesCoverState.
var Policies = map[string]Policy{
	"threadId":            PolicyImmutable,
	"userId":              PolicyImmutable,
	"conversationHistory": PolicyAppend,
	"userProfile":         PolicyReplace,
	"activeJob":           PolicyReplace,
	"jobCatalog":          PolicyAppend,
	"analysisResults":     PolicyReplace,
	"learningPlan":        PolicyReplace,
	"retrievalResult":     PolicyReplace,
	"generatedArtifacts":  PolicyAppend,
	"activeNode":          PolicyReplace,
	"routingSignal":       PolicyReplace,
	"metadata":            PolicyAppend, // key-union, newest value wins per key
}

// Merge folds a node's Patch into the previous state and returns the result.
//
// The previous state is never mutated: append-policy slices are rebuilt,
// maps are copied before union, and pointer fields are replaced with copies
// of the patch values. Field order inside append sequences is arrival order.
func Merge(prev State, p Patch) State {
	next := prev

	// Identity tags: set at creation only.
	if next.UserID == "" && p.UserID != "" {
		next.UserID = p.UserID
	}

	if len(p.ConversationHistory) > 0 {
		history := make([]Message, 0, len(prev.ConversationHistory)+len(p.ConversationHistory))
		history = append(history, prev.ConversationHistory...)
		history = append(history, p.ConversationHistory...)
		next.ConversationHistory = history
	}

	if len(p.GeneratedArtifacts) > 0 {
		artifacts := make([]Artifact, 0, len(prev.GeneratedArtifacts)+len(p.GeneratedArtifacts))
		artifacts = append(artifacts, prev.GeneratedArtifacts...)
		artifacts = append(artifacts, p.GeneratedArtifacts...)
		next.GeneratedArtifacts = artifacts
	}

	if len(p.JobCatalog) > 0 {
		catalog := make(map[string]Job, len(prev.JobCatalog)+len(p.JobCatalog))
		for id, job := range prev.JobCatalog {
			catalog[id] = job
		}
		for id, job := range p.JobCatalog {
			catalog[id] = job
		}
		next.JobCatalog = catalog
	}

	if p.UserProfile != nil {
		profile := *p.UserProfile
		next.UserProfile = &profile
	}
	if p.ActiveJob != nil {
		job := *p.ActiveJob
		next.ActiveJob = &job
	}
	if p.AnalysisResults != nil {
		analysis := *p.AnalysisResults
		next.AnalysisResults = &analysis
	}
	if p.LearningPlan != nil {
		plan := *p.LearningPlan
		next.LearningPlan = &plan
	}
	if p.RetrievalResult != nil {
		result := *p.RetrievalResult
		next.RetrievalResult = &result
	}

	if p.ActiveNode != "" {
		next.ActiveNode = p.ActiveNode
	}
	if p.RoutingSignal != SignalNone {
		next.RoutingSignal = p.RoutingSignal
	}

	if len(p.Metadata) > 0 {
		meta := make(map[string]string, len(prev.Metadata)+len(p.Metadata))
		for k, v := range prev.Metadata {
			meta[k] = v
		}
		for k, v := range p.Metadata {
			meta[k] = v
		}
		next.Metadata = meta
	}

	return next
}

// Clone returns a deep copy of the state via a JSON round trip.
// All State fields are JSON-serializable, so this cannot lose data;
// it exists so callers (stream consumers, forks) can hold a snapshot
// that later merges will not alias.
func Clone(s State) (State, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return State{}, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied State
	if err := json.Unmarshal(data, &copied); err != nil {
		return State{}, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return copied, nil
}

// ValidatePatch checks that a patch is well formed: the routing signal must
// be terminal, unset, or a syntactically valid route, and appended messages
// must carry a role. When known is non-nil, route targets must also name a
// node it reports true for — callers seeding state use that strict mode;
// the engine loop passes nil so an unknown target merges as-is and routing
// falls back to the hub instead of failing the step.
func ValidatePatch(p Patch, known func(node string) bool) error {
	switch {
	case p.RoutingSignal == SignalNone, p.RoutingSignal.Terminal():
		// terminal and unset signals are always acceptable
	default:
		target, ok := p.RoutingSignal.Target()
		if !ok {
			return fmt.Errorf("malformed routing signal %q", p.RoutingSignal)
		}
		if known != nil && !known(target) {
			return fmt.Errorf("routing signal %q targets unknown node %q", p.RoutingSignal, target)
		}
	}

	for i, msg := range p.ConversationHistory {
		if msg.Role == "" {
			return fmt.Errorf("conversation history entry %d has no role", i)
		}
	}
	return nil
}
