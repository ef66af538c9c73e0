package question

import "fmt"

// PreCheckOptions controls the fail-fast gate run before any model call is
// made, since those calls are expensive.
type PreCheckOptions struct {
	SkipValidation bool
	IgnoreInvalid  bool
}

// PreCheckError is returned when the gate rejects a question set; Indices
// names the offending questions so the CLI can report them.
type PreCheckError struct {
	Reason  string
	Indices []int
}

func (e *PreCheckError) Error() string {
	return fmt.Sprintf("question pre-check failed: %s (indices=%v)", e.Reason, e.Indices)
}

// PreCheck applies the evaluation pre-check policy in place, returning the
// (possibly filtered) question slice. It never mutates the input slice's
// backing array beyond read access; the returned slice may alias a subset.
func PreCheck(questions []Question, opts PreCheckOptions) ([]Question, error) {
	var missingValidation []int
	var invalid []int

	for i, q := range questions {
		if q.Validation == nil {
			missingValidation = append(missingValidation, i)
			continue
		}
		if !q.Validation.IsValid {
			invalid = append(invalid, i)
		}
	}

	if len(missingValidation) > 0 && !opts.SkipValidation {
		return nil, &PreCheckError{
			Reason:  fmt.Sprintf("%d question(s) lack a validation field", len(missingValidation)),
			Indices: missingValidation,
		}
	}

	filtered := questions
	if len(invalid) > 0 {
		if !opts.IgnoreInvalid {
			return nil, &PreCheckError{
				Reason:  fmt.Sprintf("%d question(s) failed validation", len(invalid)),
				Indices: invalid,
			}
		}
		invalidSet := make(map[int]struct{}, len(invalid))
		for _, idx := range invalid {
			invalidSet[idx] = struct{}{}
		}
		filtered = filtered[:0:0]
		for i, q := range questions {
			if _, drop := invalidSet[i]; drop {
				continue
			}
			filtered = append(filtered, q)
		}
	}

	if len(filtered) == 0 {
		return nil, &PreCheckError{Reason: "question set is empty after filtering"}
	}

	return filtered, nil
}
