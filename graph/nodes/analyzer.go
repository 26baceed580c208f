package nodes

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/careerpath/blackboard-go/board"
	"github.com/careerpath/blackboard-go/graph/model"
)

const analyzerSystemPrompt = `You are a job-fit analyst. Compare the candidate profile against the job
posting and respond with a single JSON object, no other text:

{"matchScore": 0.0-1.0, "strengths": ["..."], "gaps": ["..."], "summary": "one paragraph"}

Profile:
%PROFILE%

Job:
%JOB%`

// Analyzer scores the stored profile against the active job and records the
// result for downstream nodes (tailorer, gapFinder).
type Analyzer struct {
	model model.ChatModel
}

// NewAnalyzer creates the job-fit node.
func NewAnalyzer(m model.ChatModel) *Analyzer {
	return &Analyzer{model: m}
}

func (a *Analyzer) Name() string { return "analyzer" }

func (a *Analyzer) Execute(ctx context.Context, state board.State) board.Patch {
	switch {
	case state.UserProfile == nil:
		return reply(a.Name(),
			"I need your profile before I can analyze job fit. Tell me about your background first.",
			board.SignalDone)
	case state.ActiveJob == nil:
		return reply(a.Name(),
			"Which job should I analyze? Share the posting or pick one from your saved jobs.",
			board.SignalDone)
	}

	system := strings.NewReplacer(
		"%PROFILE%", profileSummary(state.UserProfile),
		"%JOB%", jobSummary(state.ActiveJob),
	).Replace(analyzerSystemPrompt)

	raw, err := a.model.Chat(ctx, system, modelHistory(state))
	if err != nil {
		return failurePatch(a.Name(), err)
	}

	analysis := parseAnalysis(raw)
	analysis.JobID = state.ActiveJob.ID

	patch := reply(a.Name(), analysis.Summary, board.SignalDone)
	patch.AnalysisResults = &analysis
	return patch
}

// parseAnalysis decodes the model's JSON verdict. Providers occasionally
// wrap JSON in prose, so retry on the outermost braces; when no JSON can be
// recovered the raw reply is kept as the summary, never discarded.
func parseAnalysis(raw string) board.Analysis {
	var analysis board.Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err == nil {
		return analysis
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &analysis); err == nil {
			return analysis
		}
	}
	return board.Analysis{Summary: strings.TrimSpace(raw)}
}
