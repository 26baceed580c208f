package nodes

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/careerpath/blackboard-go/board"
	"github.com/careerpath/blackboard-go/graph/model"
	"github.com/careerpath/blackboard-go/graph/retrieve"
)

const gapFinderSystemPrompt = `You are a career development planner. Using the candidate's gaps and the
reference material below, produce a focused learning plan. Respond with a
single JSON object, no other text:

{"focus": "one sentence", "milestones": ["..."], "resources": ["..."]}

Gaps:
%GAPS%

Reference material:
%DOCS%`

// gapFinderK is how many grounding documents the planner retrieves.
const gapFinderK = 5

// GapFinder turns the analyzer's gap list into a learning plan, grounded on
// retrieved reference material.
type GapFinder struct {
	model     model.ChatModel
	retriever retrieve.Retriever
}

// NewGapFinder creates the skill-gap planning node.
func NewGapFinder(m model.ChatModel, r retrieve.Retriever) *GapFinder {
	return &GapFinder{model: m, retriever: r}
}

func (g *GapFinder) Name() string { return "gapFinder" }

func (g *GapFinder) Execute(ctx context.Context, state board.State) board.Patch {
	gaps := g.gapsFor(state)
	if len(gaps) == 0 {
		return reply(g.Name(),
			"I don't have a gap analysis yet. Ask me to analyze your fit for a job first, "+
				"or tell me which skills you want to build.",
			board.SignalDone)
	}

	query := strings.Join(gaps, " ")
	docs, err := g.retriever.Retrieve(ctx, query, gapFinderK)
	if err != nil {
		return failurePatch(g.Name(), err)
	}

	system := strings.NewReplacer(
		"%GAPS%", "- "+strings.Join(gaps, "\n- "),
		"%DOCS%", renderDocs(docs),
	).Replace(gapFinderSystemPrompt)

	raw, err := g.model.Chat(ctx, system, modelHistory(state))
	if err != nil {
		return failurePatch(g.Name(), err)
	}
	plan := parseLearningPlan(raw)

	patch := reply(g.Name(), plan.Focus, board.SignalDone)
	patch.LearningPlan = &plan
	patch.RetrievalResult = retrievalRecord(query, docs)
	return patch
}

// gapsFor prefers the analyzer's verdict; without one it falls back to the
// gap between the job's requirements and the profile's skills.
func (g *GapFinder) gapsFor(state board.State) []string {
	if state.AnalysisResults != nil && len(state.AnalysisResults.Gaps) > 0 {
		return state.AnalysisResults.Gaps
	}
	if state.ActiveJob == nil || state.UserProfile == nil {
		return nil
	}

	have := make(map[string]bool, len(state.UserProfile.Skills))
	for _, s := range state.UserProfile.Skills {
		have[strings.ToLower(s)] = true
	}
	var gaps []string
	for _, req := range state.ActiveJob.Requirements {
		if !have[strings.ToLower(req)] {
			gaps = append(gaps, req)
		}
	}
	return gaps
}

func parseLearningPlan(raw string) board.LearningPlan {
	var plan board.LearningPlan
	if err := json.Unmarshal([]byte(raw), &plan); err == nil && plan.Focus != "" {
		return plan
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &plan); err == nil && plan.Focus != "" {
			return plan
		}
	}
	return board.LearningPlan{Focus: strings.TrimSpace(raw)}
}

func renderDocs(docs []retrieve.Document) string {
	if len(docs) == 0 {
		return "(none found)"
	}
	var sb strings.Builder
	for _, d := range docs {
		sb.WriteString("- " + d.Text + "\n")
	}
	return sb.String()
}

// retrievalRecord snapshots a retrieval call into the state's shape.
func retrievalRecord(query string, docs []retrieve.Document) *board.RetrievalResult {
	out := &board.RetrievalResult{Query: query}
	for _, d := range docs {
		out.Documents = append(out.Documents, board.RetrievedDocument{
			Content:  d.Text,
			Metadata: d.Metadata,
			Score:    d.Score,
		})
	}
	return out
}
