// Package question defines the Question/QuestionSet wire model and the JSONL
// loader with its pre-check gate.
package question

import "time"

// Kind tags the three question shapes; the scorer and prompt renderer
// dispatch on this tag instead of using a kind-per-type hierarchy.
type Kind string

const (
	KindSingleChoice   Kind = "single_choice"
	KindMultipleChoice Kind = "multiple_choice"
	KindNegative       Kind = "negative_question"
)

// Position is the half-open token range in the source document that grounds
// a question's answer.
type Position struct {
	StartPos int `json:"start_pos"`
	EndPos   int `json:"end_pos"`
}

// Len returns the evidence span length in tokens.
func (p Position) Len() int {
	return p.EndPos - p.StartPos
}

// Validation records the outcome of re-asking an independent model to check
// a question's evidence (the "validate" activity).
type Validation struct {
	IsValid        bool      `json:"is_valid"`
	FailureReasons []string  `json:"failure_reasons,omitempty"`
	ValidatorModel string    `json:"validator_model,omitempty"`
	ValidatedAt    time.Time `json:"validated_at,omitempty"`
}

// Question is an immutable record anchored at a known token position.
type Question struct {
	Text       string            `json:"text"`
	Kind       Kind              `json:"kind"`
	Choices    map[string]string `json:"choices"`
	Answer     []string          `json:"answer"`
	Position   Position          `json:"position"`
	Validation *Validation       `json:"validation,omitempty"`
}

// GenerationConfig echoes the parameters used to synthesize a question set;
// kept opaque (map) since the generator (out of THE CORE) may evolve its own
// shape without the loader needing to track every field.
type GenerationConfig map[string]any

// Metadata is the optional header line of a QuestionSet JSONL file.
type Metadata struct {
	SourcePath       string           `json:"source_path"`
	EncodingID       string           `json:"encoding_id"`
	GenerationConfig GenerationConfig `json:"generation_config,omitempty"`
	NovelSummary     string           `json:"novel_summary,omitempty"`
}

// QuestionSet is a header plus a stream of Questions.
type QuestionSet struct {
	Metadata  Metadata
	Questions []Question
}
