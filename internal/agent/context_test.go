package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/spencerpeyrot/agent-asj/internal/domain"
)

func history(n int) []domain.Message {
	msgs := make([]domain.Message, n)
	for i := range msgs {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msgs[i] = domain.Message{Role: role, Content: fmt.Sprintf("msg-%d", i)}
	}
	return msgs
}

func TestBuildContext_WindowLastFive(t *testing.T) {
	out := BuildContext(history(8), WindowPolicy{LastN: 5})

	// One system instruction plus exactly the five most recent messages.
	require.Len(t, out, 6)
	require.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	for i, m := range out[1:] {
		require.Equal(t, fmt.Sprintf("msg-%d", i+3), m.Content)
	}
}

func TestBuildContext_ShortHistoryKeptWhole(t *testing.T) {
	out := BuildContext(history(3), defaultWindow)
	require.Len(t, out, 4)
}

func TestBuildContext_AllMessagesPolicy(t *testing.T) {
	out := BuildContext(history(8), WindowPolicy{LastN: 0})
	require.Len(t, out, 9)
}

func TestBuildContext_SystemInstructionFirst(t *testing.T) {
	out := BuildContext(nil, defaultWindow)
	require.Len(t, out, 1)
	require.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	require.True(t, strings.HasSuffix(out[0].Content,
		`"Are there any edits you'd like or can we continue to the next section?"`))
}

func TestBuildContext_RoleMappingIsTotal(t *testing.T) {
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "u"},
		{Role: domain.RoleAssistant, Content: "a"},
		{Role: domain.RoleSystem, Content: "s"},
		{Role: domain.Role("legacy-bot"), Content: "x"}, // stored by an older revision
	}
	out := BuildContext(msgs, WindowPolicy{LastN: 0})
	require.Equal(t, openai.ChatMessageRoleUser, out[1].Role)
	require.Equal(t, openai.ChatMessageRoleAssistant, out[2].Role)
	require.Equal(t, openai.ChatMessageRoleSystem, out[3].Role)
	// Unrecognized speakers degrade to user rather than failing the request.
	require.Equal(t, openai.ChatMessageRoleUser, out[4].Role)
}

func TestBuildContext_Deterministic(t *testing.T) {
	msgs := history(6)
	require.Equal(t, BuildContext(msgs, defaultWindow), BuildContext(msgs, defaultWindow))
}
