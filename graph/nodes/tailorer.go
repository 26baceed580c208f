package nodes

import (
	"context"
	"strings"
	"time"

	"github.com/careerpath/blackboard-go/board"
	"github.com/careerpath/blackboard-go/graph/model"
)

const tailorerSystemPrompt = `You are a resume tailoring specialist. Rewrite the candidate's most recent
document so it targets the job below: mirror the job's language, lead with
the most relevant experience, and keep everything truthful to the profile.
Output only the tailored document.

Profile:
%PROFILE%

Job:
%JOB%

Most recent document:
%DOCUMENT%`

// Tailorer rewrites the latest generated artifact to target the active job.
type Tailorer struct {
	model model.ChatModel
	now   func() time.Time
}

// NewTailorer creates the document-tailoring node.
func NewTailorer(m model.ChatModel) *Tailorer {
	return &Tailorer{model: m, now: time.Now}
}

func (t *Tailorer) Name() string { return "tailorer" }

func (t *Tailorer) Execute(ctx context.Context, state board.State) board.Patch {
	switch {
	case state.UserProfile == nil:
		return reply(t.Name(),
			"I need your profile before tailoring anything. Tell me about your background first.",
			board.SignalDone)
	case state.ActiveJob == nil:
		return reply(t.Name(),
			"Which job should I tailor this for? Share the posting first.",
			board.SignalDone)
	case len(state.GeneratedArtifacts) == 0:
		return reply(t.Name(),
			"There's no document to tailor yet. Ask me to draft a resume or cover letter first.",
			board.SignalDone)
	}

	source := state.GeneratedArtifacts[len(state.GeneratedArtifacts)-1]
	system := strings.NewReplacer(
		"%PROFILE%", profileSummary(state.UserProfile),
		"%JOB%", jobSummary(state.ActiveJob),
		"%DOCUMENT%", source.Content,
	).Replace(tailorerSystemPrompt)

	text, err := t.model.Chat(ctx, system, modelHistory(state))
	if err != nil {
		return failurePatch(t.Name(), err)
	}

	patch := reply(t.Name(),
		"I've tailored it for the "+state.ActiveJob.Title+" role at "+state.ActiveJob.Company+".",
		board.SignalDone)
	patch.GeneratedArtifacts = []board.Artifact{{
		Kind:      source.Kind,
		Title:     source.Title + " (tailored for " + state.ActiveJob.Title + ")",
		Content:   text,
		CreatedAt: t.now().UTC(),
	}}
	return patch
}
