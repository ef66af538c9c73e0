// Package scorer computes per-question correctness scores: exact set match
// for single-choice questions, precision/recall/F1 for multi-choice ones.
package scorer

// Metrics holds the multi-choice precision/recall/F1 triple. Zero value for
// single-choice questions (they are not recorded).
type Metrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Kind mirrors question.Kind without importing the question package, so the
// scorer stays a pure leaf dependency.
type Kind string

const (
	KindSingleChoice   Kind = "single_choice"
	KindMultipleChoice Kind = "multiple_choice"
	KindNegative       Kind = "negative_question"
)

// FailureStatuses lists the parsing_status values that force score=0 with no
// further scoring logic.
var FailureStatuses = map[string]struct{}{
	"parsing_error":       {},
	"timeout":             {},
	"error":               {},
	"refused":             {},
	"context_build_error": {},
}

// Score computes the score and (for multi-choice kinds) the metrics for a
// model answer against the correct answer set. Both slices are assumed
// already normalized (lowercase, deduped, sorted) by the caller.
func Score(kind Kind, model, correct []string) (float64, Metrics) {
	switch kind {
	case KindSingleChoice:
		if setEqual(model, correct) {
			return 1.0, Metrics{}
		}
		return 0.0, Metrics{}
	default:
		return scoreMultiChoice(model, correct)
	}
}

func scoreMultiChoice(model, correct []string) (float64, Metrics) {
	intersection := intersectionSize(model, correct)

	modelDen := len(model)
	if modelDen == 0 {
		modelDen = 1
	}
	correctDen := len(correct)
	if correctDen == 0 {
		correctDen = 1
	}

	precision := float64(intersection) / float64(modelDen)
	recall := float64(intersection) / float64(correctDen)

	var f1 float64
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	return f1, Metrics{Precision: precision, Recall: recall, F1: f1}
}

func setEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := toSet(b)
	for _, v := range a {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

func intersectionSize(a, b []string) int {
	set := toSet(b)
	count := 0
	for _, v := range a {
		if _, ok := set[v]; ok {
			count++
		}
	}
	return count
}

func toSet(s []string) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for _, v := range s {
		out[v] = struct{}{}
	}
	return out
}
