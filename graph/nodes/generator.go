package nodes

import (
	"context"
	"strings"
	"time"

	"github.com/careerpath/blackboard-go/board"
	"github.com/careerpath/blackboard-go/graph/model"
)

const generatorSystemPrompt = `You are a professional resume and cover letter writer.
Write the document the user asked for, using the profile below. Output only
the document text, ready to use, with no commentary before or after.

Profile:
%PROFILE%`

// Generator drafts a resume or cover letter from the stored profile and
// appends it to the artifact list.
type Generator struct {
	model model.ChatModel
	now   func() time.Time
}

// NewGenerator creates the artifact-drafting node.
func NewGenerator(m model.ChatModel) *Generator {
	return &Generator{model: m, now: time.Now}
}

func (g *Generator) Name() string { return "generator" }

func (g *Generator) Execute(ctx context.Context, state board.State) board.Patch {
	if state.UserProfile == nil {
		return reply(g.Name(),
			"I need your profile before I can draft anything. "+
				"Tell me about your experience, skills, and education first.",
			board.SignalDone)
	}

	system := strings.Replace(generatorSystemPrompt, "%PROFILE%", profileSummary(state.UserProfile), 1)
	text, err := g.model.Chat(ctx, system, modelHistory(state))
	if err != nil {
		return failurePatch(g.Name(), err)
	}

	kind, title := classifyArtifact(lastUserMessage(state))
	patch := reply(g.Name(), "Here's a draft. Want me to adjust the tone or emphasize anything?", board.SignalDone)
	patch.GeneratedArtifacts = []board.Artifact{{
		Kind:      kind,
		Title:     title,
		Content:   text,
		CreatedAt: g.now().UTC(),
	}}
	return patch
}

// classifyArtifact picks the artifact kind from the request wording,
// defaulting to a resume.
func classifyArtifact(request string) (kind, title string) {
	if strings.Contains(strings.ToLower(request), "cover letter") {
		return board.ArtifactCoverLetter, "Cover letter draft"
	}
	return board.ArtifactResume, "Resume draft"
}
