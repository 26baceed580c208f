// Package nodes implements the coaching workflow's node set: a router hub
// that dispatches on conversational intent, and spoke nodes that generate
// artifacts, analyze job fit, tailor documents, plan around skill gaps, and
// coach with retrieved grounding.
//
// Nodes never return errors. A provider outage, timeout, or malformed
// response is reported through the patch itself: an assistant-facing notice
// plus board.SignalError, which the engine checkpoints and terminates on
// like any other step.
package nodes

import (
	"strings"

	"github.com/careerpath/blackboard-go/board"
	"github.com/careerpath/blackboard-go/graph/model"
)

// historyWindow bounds how much conversation is sent to a provider.
const historyWindow = 20

// failurePatch reports an in-node failure through state.
func failurePatch(node string, err error) board.Patch {
	return board.Patch{
		ConversationHistory: []board.Message{{
			Role:    board.RoleAssistant,
			Content: "I ran into a problem handling that. Please try again in a moment.",
		}},
		ActiveNode:    node,
		RoutingSignal: board.SignalError,
		Metadata:      map[string]string{"lastError": err.Error()},
	}
}

// reply builds the common success patch: an assistant message plus signal.
func reply(node, text string, signal board.Signal) board.Patch {
	return board.Patch{
		ConversationHistory: []board.Message{{Role: board.RoleAssistant, Content: text}},
		ActiveNode:          node,
		RoutingSignal:       signal,
	}
}

// modelHistory converts the tail of the conversation to provider messages.
func modelHistory(state board.State) []model.Message {
	history := state.ConversationHistory
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	out := make([]model.Message, 0, len(history))
	for _, m := range history {
		out = append(out, model.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// lastUserMessage returns the most recent user turn, or "".
func lastUserMessage(state board.State) string {
	for i := len(state.ConversationHistory) - 1; i >= 0; i-- {
		if state.ConversationHistory[i].Role == board.RoleUser {
			return state.ConversationHistory[i].Content
		}
	}
	return ""
}

// profileSummary renders the stored profile for prompt use.
func profileSummary(p *board.UserProfile) string {
	if p == nil {
		return "(no profile on file)"
	}
	var sb strings.Builder
	sb.WriteString("Name: " + p.Name + "\n")
	if p.Headline != "" {
		sb.WriteString("Headline: " + p.Headline + "\n")
	}
	if len(p.Skills) > 0 {
		sb.WriteString("Skills: " + strings.Join(p.Skills, ", ") + "\n")
	}
	if len(p.Experience) > 0 {
		sb.WriteString("Experience:\n- " + strings.Join(p.Experience, "\n- ") + "\n")
	}
	if len(p.Education) > 0 {
		sb.WriteString("Education:\n- " + strings.Join(p.Education, "\n- ") + "\n")
	}
	return sb.String()
}

// jobSummary renders the active job for prompt use.
func jobSummary(j *board.Job) string {
	if j == nil {
		return "(no active job)"
	}
	var sb strings.Builder
	sb.WriteString(j.Title + " at " + j.Company + "\n")
	if j.Description != "" {
		sb.WriteString(j.Description + "\n")
	}
	if len(j.Requirements) > 0 {
		sb.WriteString("Requirements:\n- " + strings.Join(j.Requirements, "\n- ") + "\n")
	}
	return sb.String()
}
