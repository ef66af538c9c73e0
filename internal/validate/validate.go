// Package validate re-asks an independent model each generated question in
// a no-reference style and scores the reply against the question's own
// recorded answer.
package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel-labs/lcbench/internal/answer"
	"github.com/kadirpekel-labs/lcbench/internal/modelclient"
	"github.com/kadirpekel-labs/lcbench/internal/prompt"
	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/scorer"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
)

// Threshold is the minimum score for a re-asked question to be marked valid.
const Threshold = 1.0

// Validator re-asks the testing template for each question and records
// whether an independent model, given only its evidence window, could
// reproduce the recorded answer.
type Validator struct {
	tok       *tokenizer.Tokenizer
	invoker   modelclient.Invoker
	prompts   *prompt.Store
	modelName string
	threshold float64
}

func New(tok *tokenizer.Tokenizer, invoker modelclient.Invoker, prompts *prompt.Store, modelName string) *Validator {
	return &Validator{tok: tok, invoker: invoker, prompts: prompts, modelName: modelName, threshold: Threshold}
}

// Validate re-asks q against its own evidence span (decoded from
// sourceTokens, with no other document context) and returns the Validation
// outcome to attach to q.
func (v *Validator) Validate(ctx context.Context, sourceTokens []int, q question.Question) (question.Validation, error) {
	evidenceText := v.tok.Decode(sourceTokens[q.Position.StartPos:q.Position.EndPos])

	system, user, err := v.prompts.Render("testing", map[string]string{
		"context":  evidenceText,
		"question": q.Text,
		"choices":  formatChoices(q.Choices),
	})
	if err != nil {
		return question.Validation{}, fmt.Errorf("validate: render template: %w", err)
	}

	reply, status, err := v.invoker.Call(ctx, system, user)
	if err != nil {
		return question.Validation{}, fmt.Errorf("validate: model call: %w", err)
	}

	result := question.Validation{ValidatorModel: v.modelName, ValidatedAt: time.Now().UTC()}

	if status != modelclient.StatusSuccess {
		result.IsValid = false
		result.FailureReasons = append(result.FailureReasons, fmt.Sprintf("model_status_%s", status))
		return result, nil
	}

	validKeys := make(map[string]struct{}, len(q.Choices))
	for k := range q.Choices {
		validKeys[k] = struct{}{}
	}

	modelAnswer, parseStatus := answer.Parse(reply, validKeys)
	if parseStatus == answer.StatusParsingError {
		result.IsValid = false
		result.FailureReasons = append(result.FailureReasons, "parsing_error")
		return result, nil
	}

	score, _ := scorer.Score(scorer.Kind(q.Kind), modelAnswer, q.Answer)
	result.IsValid = score >= v.threshold
	if !result.IsValid {
		result.FailureReasons = append(result.FailureReasons, fmt.Sprintf("score_%.2f_below_threshold", score))
	}
	return result, nil
}

// formatChoices mirrors prompt.formatChoices (unexported there); kept as a
// small local copy rather than exporting a cross-package dependency for one
// small helper.
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
