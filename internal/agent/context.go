package agent

import (
	"github.com/sashabaranov/go-openai"

	"github.com/spencerpeyrot/agent-asj/internal/domain"
)

// systemPrompt is the default persona handed to the backend ahead of every
// windowed history. The closing question is a behavioral contract: every
// generated section must end with it.
const systemPrompt = `You are a professional financial newsletter writer guiding the user through building a newsletter one section at a time (thesis, introduction, actionable trades, conclusion). Work interactively: draft the section the user is asking about, keep it consistent with everything drafted so far, and keep the tone professional and readable. End every section you produce with the question "Are there any edits you'd like or can we continue to the next section?"`

// sectionSystemPrompt frames one-shot section generation requests.
const sectionSystemPrompt = "You are a professional financial newsletter writer."

// WindowPolicy controls how much history enters a generation request.
type WindowPolicy struct {
	// LastN keeps the most recent N messages; 0 keeps everything.
	LastN int
}

// defaultWindow bounds request size and cost. Older history is silently
// excluded, never summarized.
var defaultWindow = WindowPolicy{LastN: 5}

// BuildContext derives the role-annotated message list sent to the backend:
// one fixed system instruction followed by the windowed history. Pure
// function of its inputs.
func BuildContext(messages []domain.Message, policy WindowPolicy) []openai.ChatCompletionMessage {
	window := messages
	if policy.LastN > 0 && len(window) > policy.LastN {
		window = window[len(window)-policy.LastN:]
	}

	out := make([]openai.ChatCompletionMessage, 0, len(window)+1)
	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range window {
		out = append(out, openai.ChatCompletionMessage{
			Role:    backendRole(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// backendRole maps a stored speaker to the backend's role vocabulary. The
// mapping is total: unrecognized values degrade to user instead of failing
// the whole request.
func backendRole(r domain.Role) string {
	switch r {
	case domain.RoleUser:
		return openai.ChatMessageRoleUser
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
