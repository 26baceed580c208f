package nodes

import (
	"context"
	"strings"

	"github.com/careerpath/blackboard-go/board"
	"github.com/careerpath/blackboard-go/graph/model"
	"github.com/careerpath/blackboard-go/graph/retrieve"
)

const coachSystemPrompt = `You are a supportive, practical career coach. Answer the user's question
directly, drawing on their profile and the reference material below when it
helps. Be concrete; no filler.

Profile:
%PROFILE%

Reference material:
%DOCS%`

// coachK is how many grounding documents a coaching turn retrieves.
const coachK = 3

// Coach is the free-form advice node: it grounds the user's question with
// retrieved material and answers conversationally.
type Coach struct {
	model     model.ChatModel
	retriever retrieve.Retriever
}

// NewCoach creates the coaching node.
func NewCoach(m model.ChatModel, r retrieve.Retriever) *Coach {
	return &Coach{model: m, retriever: r}
}

func (c *Coach) Name() string { return "coach" }

func (c *Coach) Execute(ctx context.Context, state board.State) board.Patch {
	question := lastUserMessage(state)
	if question == "" {
		return reply(c.Name(), "What's on your mind? Ask me anything about your career.", board.SignalDone)
	}

	docs, err := c.retriever.Retrieve(ctx, question, coachK)
	if err != nil {
		return failurePatch(c.Name(), err)
	}

	system := strings.NewReplacer(
		"%PROFILE%", profileSummary(state.UserProfile),
		"%DOCS%", renderDocs(docs),
	).Replace(coachSystemPrompt)

	answer, err := c.model.Chat(ctx, system, modelHistory(state))
	if err != nil {
		return failurePatch(c.Name(), err)
	}

	patch := reply(c.Name(), answer, board.SignalDone)
	patch.RetrievalResult = retrievalRecord(question, docs)
	return patch
}
