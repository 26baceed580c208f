package nodes

import (
	"context"
	"strings"

	"github.com/careerpath/blackboard-go/board"
	"github.com/careerpath/blackboard-go/graph/model"
)

// intentTargets is the closed set of intents the router recognizes and the
// node each one dispatches to. Routing is a strict lookup on the model's
// classification; user text is never keyword-matched.
var intentTargets = map[string]string{
	"generate": "generator",
	"analyze":  "analyzer",
	"tailor":   "tailorer",
	"gaps":     "gapFinder",
	"coach":    "coach",
}

const routerSystemPrompt = `You are the intent classifier for a career coaching assistant.
Classify the user's most recent message into exactly one of these intents:

  generate - the user wants a resume or cover letter drafted from scratch
  analyze  - the user wants to know how well their profile matches a job
  tailor   - the user wants an existing document adjusted for a specific job
  gaps     - the user wants to know what skills they are missing and how to learn them
  coach    - the user wants career advice, interview help, or general guidance

Reply with the single intent word and nothing else.`

const clarificationReply = "I can draft a resume or cover letter, analyze your fit for a job, " +
	"tailor a document, map out skill gaps, or just talk through your career. " +
	"What would you like to do?"

// Router is the hub node: it classifies the latest user turn and emits a
// structured route signal for the matching spoke.
type Router struct {
	model model.ChatModel
}

// NewRouter creates the hub node on the given chat model.
func NewRouter(m model.ChatModel) *Router {
	return &Router{model: m}
}

func (r *Router) Name() string { return "router" }

func (r *Router) Execute(ctx context.Context, state board.State) board.Patch {
	if lastUserMessage(state) == "" {
		// Nothing to classify; ask instead of guessing.
		return reply(r.Name(), clarificationReply, board.SignalDone)
	}

	raw, err := r.model.Chat(ctx, routerSystemPrompt, modelHistory(state))
	if err != nil {
		return failurePatch(r.Name(), err)
	}

	intent := strings.ToLower(strings.TrimSpace(raw))
	target, ok := intentTargets[intent]
	if !ok {
		// The classifier said something outside the closed set. Degrade
		// to a clarifying question rather than dispatching on a guess.
		return reply(r.Name(), clarificationReply, board.SignalDone)
	}

	return board.Patch{
		ActiveNode:    r.Name(),
		RoutingSignal: board.RouteTo(target),
		Metadata:      map[string]string{"lastIntent": intent},
	}
}
