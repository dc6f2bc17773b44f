package newsletter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spencerpeyrot/agent-asj/internal/domain"
)

func TestRender_AllKinds(t *testing.T) {
	e := NewEngine()
	vars := map[string]string{"topic": "semiconductors", "additional_info": "Focus on foundries."}

	for _, kind := range []domain.SectionKind{
		domain.SectionThesis,
		domain.SectionIntroduction,
		domain.SectionActionableTrades,
		domain.SectionConclusion,
	} {
		out, err := e.Render(kind, vars)
		require.NoError(t, err, "kind %s", kind)
		require.Contains(t, out, "semiconductors")
		require.Contains(t, out, "Focus on foundries.")
		require.NotContains(t, out, "{")
	}
}

func TestRender_SimpleSubstitution(t *testing.T) {
	e := NewEngine()
	e.Register("thesis", Template{Text: "Write about {topic}.", Required: []string{"topic"}})

	out, err := e.Render(domain.SectionThesis, map[string]string{"topic": "AI"})
	require.NoError(t, err)
	require.Equal(t, "Write about AI.", out)
}

func TestRender_MissingRequiredVariable(t *testing.T) {
	e := NewEngine()

	_, err := e.Render(domain.SectionThesis, map[string]string{})
	require.Error(t, err)
	require.Equal(t, domain.KindTemplate, domain.KindOf(err))
	require.Contains(t, err.Error(), "topic")
}

func TestRender_ReportsEveryMissingVariable(t *testing.T) {
	e := NewEngine()
	e.Register("thesis", Template{
		Text:     "{audience} wants {topic}",
		Required: []string{"topic", "audience"},
	})

	_, err := e.Render(domain.SectionThesis, map[string]string{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "topic")
	require.Contains(t, err.Error(), "audience")
}

func TestRender_UnknownSectionKind(t *testing.T) {
	e := NewEngine()

	_, err := e.Render("appendix", map[string]string{"topic": "x"})
	require.Error(t, err)
	require.Equal(t, domain.KindTemplate, domain.KindOf(err))
	require.Contains(t, err.Error(), "appendix")
}

func TestRender_OptionalVariableDefaultsToEmpty(t *testing.T) {
	e := NewEngine()

	out, err := e.Render(domain.SectionThesis, map[string]string{"topic": "gold"})
	require.NoError(t, err)
	require.Equal(t, "Write a thesis statement for a financial newsletter about gold.", out)
}
