package question

import "fmt"

// Validate checks the structural invariants for a single Question. totalTokens, when
// > 0, additionally bounds end_pos against the source document length; pass
// 0 when the source length is not known at validation time. It never
// mutates q; callers that need degraded-but-usable behavior (the loader)
// catch the error and skip the line instead of failing the whole load.
func Validate(q Question, totalTokens int) error {
	switch q.Kind {
	case KindSingleChoice, KindMultipleChoice, KindNegative:
	default:
		return fmt.Errorf("unknown kind %q", q.Kind)
	}

	if len(q.Choices) < 2 {
		return fmt.Errorf("question must have at least 2 choices, got %d", len(q.Choices))
	}

	if len(q.Answer) == 0 {
		return fmt.Errorf("answer must be non-empty")
	}

	for _, key := range q.Answer {
		if _, ok := q.Choices[key]; !ok {
			return fmt.Errorf("answer key %q is not present in choices", key)
		}
	}

	if q.Position.StartPos < 0 || q.Position.StartPos >= q.Position.EndPos {
		return fmt.Errorf("invalid position: start_pos=%d end_pos=%d", q.Position.StartPos, q.Position.EndPos)
	}
	if totalTokens > 0 && q.Position.EndPos > totalTokens {
		return fmt.Errorf("position end_pos=%d exceeds source length %d", q.Position.EndPos, totalTokens)
	}

	if q.Kind == KindMultipleChoice {
		distractors := len(q.Choices) - len(q.Answer)
		if distractors < 2 {
			return fmt.Errorf("multiple_choice question needs at least 2 distractors, got %d", distractors)
		}
	}

	return nil
}
