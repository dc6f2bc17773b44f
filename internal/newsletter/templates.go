// Package newsletter renders section-generation prompts from named templates
// with keyed substitution variables.
package newsletter

import (
	"sort"
	"strings"

	"github.com/spencerpeyrot/agent-asj/internal/domain"
)

// Template is a prompt template with declared variables. Required variables
// must be present in the render call; optional ones default to empty.
type Template struct {
	Text     string
	Required []string
	Optional []string
}

// Engine holds the template registry, keyed by section kind.
type Engine struct {
	templates map[domain.SectionKind]Template
}

// NewEngine returns an engine preloaded with the newsletter section
// templates.
func NewEngine() *Engine {
	return &Engine{templates: map[domain.SectionKind]Template{
		domain.SectionThesis: {
			Text:     "Write a thesis statement for a financial newsletter about {topic}. {additional_info}",
			Required: []string{"topic"},
			Optional: []string{"additional_info"},
		},
		domain.SectionIntroduction: {
			Text:     "Write an introduction for a financial newsletter about {topic}. {additional_info}",
			Required: []string{"topic"},
			Optional: []string{"additional_info"},
		},
		domain.SectionActionableTrades: {
			Text:     "Write actionable trade recommendations about {topic}. {additional_info}",
			Required: []string{"topic"},
			Optional: []string{"additional_info"},
		},
		domain.SectionConclusion: {
			Text:     "Write a conclusion for a financial newsletter about {topic}. {additional_info}",
			Required: []string{"topic"},
			Optional: []string{"additional_info"},
		},
	}}
}

// Register adds or replaces the template for a section kind. The kind set is
// extensible by construction.
func (e *Engine) Register(kind domain.SectionKind, tmpl Template) {
	e.templates[kind] = tmpl
}

// Render looks up the template for kind and substitutes variables. Missing
// required variables are all reported in a single error, before any
// substitution happens.
func (e *Engine) Render(kind domain.SectionKind, vars map[string]string) (string, error) {
	tmpl, ok := e.templates[kind]
	if !ok {
		return "", domain.Templatef("no template found for section type %q", kind)
	}

	var missing []string
	for _, name := range tmpl.Required {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", domain.Templatef("missing required context fields: %s", strings.Join(missing, ", "))
	}

	pairs := make([]string, 0, 2*(len(tmpl.Required)+len(tmpl.Optional)))
	for _, name := range tmpl.Required {
		pairs = append(pairs, "{"+name+"}", vars[name])
	}
	for _, name := range tmpl.Optional {
		pairs = append(pairs, "{"+name+"}", vars[name])
	}
	out := strings.NewReplacer(pairs...).Replace(tmpl.Text)
	return strings.TrimSpace(out), nil
}
