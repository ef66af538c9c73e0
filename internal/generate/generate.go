// Package generate synthesizes a QuestionSet by sampling anchor positions
// in a source document, asking a model to write one question per anchor,
// and parsing its reply back into a question.Question.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kadirpekel-labs/lcbench/internal/modelclient"
	"github.com/kadirpekel-labs/lcbench/internal/prompt"
	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
)

// braceRe mirrors the answer package's embedded-JSON fallback: the first
// balanced-looking {...} substring in a reply that isn't pure JSON itself
// (e.g. wrapped in a ```json fence or prefixed with commentary).
var braceRe = regexp.MustCompile(`(?s)\{.*\}`)

// Config controls anchor sampling. Stride is the token gap between
// consecutive anchors; WindowRadius is how many tokens of surrounding
// context (in each direction) are shown to the model around an anchor.
type Config struct {
	Count        int
	Stride       int
	WindowRadius int
	Kind         question.Kind
}

// Generator synthesizes questions anchored at sampled positions of a tokenized
// source document.
type Generator struct {
	tok     *tokenizer.Tokenizer
	invoker modelclient.Invoker
	prompts *prompt.Store
}

func New(tok *tokenizer.Tokenizer, invoker modelclient.Invoker, prompts *prompt.Store) *Generator {
	return &Generator{tok: tok, invoker: invoker, prompts: prompts}
}

// Generate produces up to cfg.Count questions anchored across sourceTokens.
// A model refusal or unparseable reply drops that anchor rather than
// failing the whole run; Generate only returns an error when no questions
// could be produced at all.
func (g *Generator) Generate(ctx context.Context, sourceTokens []int, cfg Config) (question.QuestionSet, error) {
	anchors := sampleAnchors(len(sourceTokens), cfg.Count, cfg.Stride)
	if len(anchors) == 0 {
		return question.QuestionSet{}, fmt.Errorf("generate: source too short for any anchor (stride=%d, len=%d)", cfg.Stride, len(sourceTokens))
	}

	var questions []question.Question
	for _, anchor := range anchors {
		q, ok, err := g.generateOne(ctx, sourceTokens, anchor, cfg)
		if err != nil {
			return question.QuestionSet{}, err
		}
		if ok {
			questions = append(questions, q)
		}
	}

	if len(questions) == 0 {
		return question.QuestionSet{}, fmt.Errorf("generate: no anchor produced a parseable question")
	}

	return question.QuestionSet{Questions: questions}, nil
}

func (g *Generator) generateOne(ctx context.Context, sourceTokens []int, anchor int, cfg Config) (question.Question, bool, error) {
	start := anchor - cfg.WindowRadius
	if start < 0 {
		start = 0
	}
	end := anchor + cfg.WindowRadius
	if end > len(sourceTokens) {
		end = len(sourceTokens)
	}
	windowText := g.tok.Decode(sourceTokens[start:end])

	system, user, err := g.prompts.Render("question_generation", map[string]string{
		"anchor_text": windowText,
		"kind":        string(cfg.Kind),
	})
	if err != nil {
		return question.Question{}, false, fmt.Errorf("generate: render template: %w", err)
	}

	reply, status, err := g.invoker.Call(ctx, system, user)
	if err != nil {
		return question.Question{}, false, fmt.Errorf("generate: model call: %w", err)
	}
	if status != modelclient.StatusSuccess {
		return question.Question{}, false, nil
	}

	payload, ok := parseGeneratedQuestion(reply)
	if !ok {
		return question.Question{}, false, nil
	}

	return question.Question{
		Text:     payload.text,
		Kind:     cfg.Kind,
		Choices:  payload.choices,
		Answer:   payload.answer,
		Position: question.Position{StartPos: start, EndPos: end},
	}, true, nil
}

// sampleAnchors picks evenly spaced token indices, stepping by stride,
// capped at count anchors and never past the end of the document.
func sampleAnchors(sourceLen, count, stride int) []int {
	if sourceLen == 0 || stride <= 0 || count <= 0 {
		return nil
	}
	var anchors []int
	for pos := stride; pos < sourceLen && len(anchors) < count; pos += stride {
		anchors = append(anchors, pos)
	}
	return anchors
}

type generatedPayload struct {
	text    string
	choices map[string]string
	answer  []string
}

type generatedJSON struct {
	Text    string            `json:"text"`
	Choices map[string]string `json:"choices"`
	Answer  []string          `json:"answer"`
}

// parseGeneratedQuestion mirrors the answer package's layered JSON fallback
// strategy (direct decode, then the first embedded {...} substring): a
// generation reply and a testing reply are both "JSON with an
// answer-shaped field", so the same shape of parsing applies here.
func parseGeneratedQuestion(reply string) (generatedPayload, bool) {
	var payload generatedJSON
	if json.Unmarshal([]byte(strings.TrimSpace(reply)), &payload) == nil && valid(payload) {
		return toPayload(payload), true
	}

	if match := braceRe.FindString(reply); match != "" {
		var embedded generatedJSON
		if json.Unmarshal([]byte(match), &embedded) == nil && valid(embedded) {
			return toPayload(embedded), true
		}
	}

	return generatedPayload{}, false
}

func valid(g generatedJSON) bool {
	return strings.TrimSpace(g.Text) != "" && len(g.Answer) > 0
}

func toPayload(g generatedJSON) generatedPayload {
	return generatedPayload{text: g.Text, choices: g.Choices, answer: g.Answer}
}
