// Package evalresult defines the canonical per-assignment result record
// shared by the execution pipeline, recovery merger, and aggregator.
package evalresult

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/kadirpekel-labs/lcbench/internal/scorer"
)

// ParsingStatus strings recognized across the pipeline. Any value other than
// StatusSuccess or StatusRegexExtracted is treated as a failure for scoring
// and recovery purposes.
const (
	StatusSuccess           = "success"
	StatusRegexExtracted    = "regex_extracted"
	StatusParsingError      = "parsing_error"
	StatusTimeout           = "timeout"
	StatusError             = "error"
	StatusRefused           = "refused"
	StatusContextBuildError = "context_build_error"
)

// Result is one row of the output JSONL stream: one question answered at one
// (context_length, depth_bin) cell.
type Result struct {
	QuestionIndex    int            `json:"question_index"`
	QuestionTextHash string         `json:"question_text_hash"`
	ContextLength    int            `json:"context_length"`
	DepthBin         string         `json:"depth_bin,omitempty"`
	TargetDepth      float64        `json:"target_depth"`
	ActualDepth      float64        `json:"actual_depth,omitempty"`
	Kind             string         `json:"kind"`
	ParsingStatus    string         `json:"parsing_status"`
	ModelAnswer      []string       `json:"model_answer,omitempty"`
	CorrectAnswer    []string       `json:"correct_answer"`
	Score            float64        `json:"score"`
	Metrics          scorer.Metrics `json:"metrics"`
	RawReply         string         `json:"raw_reply,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// HashQuestionText computes the stable identity used to match a question
// across runs whose ordering or source file may have changed.
func HashQuestionText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
