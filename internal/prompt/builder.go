package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kadirpekel-labs/lcbench/internal/question"
)

// TestingBuilder adapts a Store's "testing" template to
// pipeline.PromptBuilder, rendering one question against its built context.
type TestingBuilder struct {
	Store *Store
}

// Build renders the testing template's system/user turn for q inside
// contextText. It panics if the store has no "testing" template — a
// missing template file is a startup-time configuration error, not a
// per-question one.
func (b TestingBuilder) Build(q question.Question, contextText string) (system, user string) {
	system, user, err := b.Store.Render("testing", map[string]string{
		"context":  contextText,
		"question": q.Text,
		"choices":  formatChoices(q.Choices),
	})
	if err != nil {
		panic(fmt.Sprintf("prompt: testing template: %v", err))
	}
	return system, user
}

// formatChoices renders a question's choice map as a stable, sorted
// "key) text" listing for inclusion in a prompt.
func formatChoices(choices map[string]string) string {
	if len(choices) == 0 {
		return ""
	}
	keys := make([]string, 0, len(choices))
	for k := range choices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s) %s", k, choices[k]))
	}
	return strings.Join(lines, "\n")
}
