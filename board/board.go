// Package board defines the blackboard state shared by all workflow nodes,
// the partial-update Patch type, and the per-field reducer table used to
// merge node output into state.
package board

import "time"

// Standard role constants for conversation messages.
// These align with the conventions used by major LLM providers.
const (
	// RoleSystem indicates a system message that sets context or instructions.
	RoleSystem = "system"

	// RoleUser indicates a message from the human user.
	RoleUser = "user"

	// RoleAssistant indicates a response generated by a workflow node.
	RoleAssistant = "assistant"
)

// SchemaVersion identifies the current shape of State for persisted snapshots.
const SchemaVersion = "2"

// Message is a single role-tagged entry in the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserProfile is the career profile a conversation operates on.
// Replaced wholesale on write (last-writer-wins).
type UserProfile struct {
	Name       string   `json:"name"`
	Headline   string   `json:"headline,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Experience []string `json:"experience,omitempty"`
	Education  []string `json:"education,omitempty"`
}

// Job is a single job posting record.
type Job struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Description  string   `json:"description,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
}

// Analysis is the derived result of matching a profile against a job.
type Analysis struct {
	JobID      string   `json:"jobId,omitempty"`
	MatchScore float64  `json:"matchScore"`
	Strengths  []string `json:"strengths,omitempty"`
	Gaps       []string `json:"gaps,omitempty"`
	Summary    string   `json:"summary"`
}

// LearningPlan is a derived upskilling plan produced by the gap-finder node.
type LearningPlan struct {
	Focus      string   `json:"focus"`
	Milestones []string `json:"milestones,omitempty"`
	Resources  []string `json:"resources,omitempty"`
}

// RetrievedDocument is one hit returned from the retrieval boundary.
type RetrievedDocument struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}

// RetrievalResult captures the most recent similarity-search call made by a node.
type RetrievalResult struct {
	Query     string              `json:"query"`
	Documents []RetrievedDocument `json:"documents,omitempty"`
}

// Artifact kinds produced by the workflow nodes.
const (
	ArtifactResume       = "resume"
	ArtifactCoverLetter  = "cover-letter"
	ArtifactLearningPlan = "learning-plan"
)

// Artifact is a produced document (resume, cover letter, learning plan).
// Artifacts accumulate across the whole conversation and are never replaced.
type Artifact struct {
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// State is the single shared record all workflow nodes read and write.
//
// A State instance is never stored on its own: it exists as the snapshot
// field of a checkpoint, or transiently in memory during one engine
// iteration. Nodes must treat the State they receive as read-only and
// return changes via a Patch.
type State struct {
	// ThreadID and UserID are immutable identity tags set at creation.
	ThreadID string `json:"threadId"`
	UserID   string `json:"userId"`

	// ConversationHistory is append-only: new entries are concatenated,
	// never replaced or reordered.
	ConversationHistory []Message `json:"conversationHistory"`

	UserProfile *UserProfile `json:"userProfile,omitempty"`
	ActiveJob   *Job         `json:"activeJob,omitempty"`

	// JobCatalog maps job id to job record; merged by key union.
	JobCatalog map[string]Job `json:"jobCatalog,omitempty"`

	AnalysisResults *Analysis        `json:"analysisResults,omitempty"`
	LearningPlan    *LearningPlan    `json:"learningPlan,omitempty"`
	RetrievalResult *RetrievalResult `json:"retrievalResult,omitempty"`

	// GeneratedArtifacts is append-only and accumulates across the
	// whole conversation.
	GeneratedArtifacts []Artifact `json:"generatedArtifacts"`

	// ActiveNode names the node that last executed (observability field).
	ActiveNode string `json:"activeNode"`

	// RoutingSignal is consumed by the engine's routing function to pick
	// the next node or terminate the loop.
	RoutingSignal Signal `json:"routingSignal"`

	// Metadata is an open key/value bag (creation timestamp, schema version).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// New returns a fresh State for the given thread and user identity.
func New(threadID, userID string) State {
	return State{
		ThreadID:            threadID,
		UserID:              userID,
		ConversationHistory: []Message{},
		GeneratedArtifacts:  []Artifact{},
		Metadata: map[string]string{
			"createdAt":     time.Now().UTC().Format(time.RFC3339),
			"schemaVersion": SchemaVersion,
		},
	}
}

// Patch is a partial state update produced by a single node execution.
//
// Merge semantics are fixed per field by the reducer table (see Policies):
// slice and map fields are appended/unioned, pointer fields replace the
// previous value only when non-nil, and string fields replace only when
// non-empty. UserID is applied only when the previous state carries none
// (identity is set at creation and immutable thereafter).
type Patch struct {
	UserID string `json:"userId,omitempty"`

	ConversationHistory []Message `json:"conversationHistory,omitempty"`

	UserProfile *UserProfile   `json:"userProfile,omitempty"`
	ActiveJob   *Job           `json:"activeJob,omitempty"`
	JobCatalog  map[string]Job `json:"jobCatalog,omitempty"`

	AnalysisResults *Analysis        `json:"analysisResults,omitempty"`
	LearningPlan    *LearningPlan    `json:"learningPlan,omitempty"`
	RetrievalResult *RetrievalResult `json:"retrievalResult,omitempty"`

	GeneratedArtifacts []Artifact `json:"generatedArtifacts,omitempty"`

	ActiveNode    string `json:"activeNode,omitempty"`
	RoutingSignal Signal `json:"routingSignal,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}
