// Package contextbuilder assembles a fixed-length test context in which a
// question's evidence span sits at a prescribed fractional depth. It is the
// largest and most failure-prone single component: every failure mode it
// can hit is returned as a typed error rather than panicking, since the
// execution pipeline must keep going after one assignment's context fails
// to build.
package contextbuilder

import (
	"errors"
	"math"

	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
)

// Error reasons, surfaced verbatim on BuiltContext.Error and mapped to the
// pipeline's context_build_error parsing status.
var (
	ErrEvidenceTooLarge   = errors.New("contextbuilder: evidence span exceeds requested context length")
	ErrInsufficientSource = errors.New("contextbuilder: source document too short to supply disjoint filler")
)

// BuiltContext is the output of Build. When OK is false, Error names why and
// the other fields are zero.
type BuiltContext struct {
	Text               string
	ActualDepth        float64
	EvidenceTokenStart int
	EvidenceTokenEnd   int
	PrefixLen          int
	SuffixLen          int
	OK                 bool
	Error              error
}

// Build assembles a context of exactly contextLength tokens (within ±1%)
// with question's evidence span placed at fractional depth targetDepth.
// padding tokens are added around the evidence on each side before boundary
// snapping, to avoid truncating sentences immediately adjacent to it.
func Build(tok *tokenizer.Tokenizer, sourceTokens []int, q question.Position, targetDepth float64, contextLength, padding int) BuiltContext {
	n := len(sourceTokens)

	expandedStart := q.StartPos - padding
	if expandedStart < 0 {
		expandedStart = 0
	}
	expandedEnd := q.EndPos + padding
	if expandedEnd > n {
		expandedEnd = n
	}

	left := tok.FindBoundary(sourceTokens, expandedStart, tokenizer.Backward)
	right := tok.FindBoundary(sourceTokens, expandedEnd, tokenizer.Forward)
	if right < left {
		right = left
	}

	evidence := sourceTokens[left:right]
	e := len(evidence)

	if e > contextLength {
		return BuiltContext{Error: ErrEvidenceTooLarge}
	}

	remaining := contextLength - e
	prefixWant := int(math.Round(targetDepth * float64(remaining)))
	if prefixWant > remaining {
		prefixWant = remaining
	}
	if prefixWant < 0 {
		prefixWant = 0
	}
	suffixWant := remaining - prefixWant

	// Available filler pool: everything outside the snapped evidence span,
	// in document order. left/right come from FindBoundary above, so they
	// sit on a sentence boundary when one was found within its scan limit
	// and on the hard cutoff otherwise. The prefix filler's end and the
	// suffix filler's start are plain token offsets into the pool and are
	// not snapped to a boundary.
	avail := make([]int, 0, left+(n-right))
	avail = append(avail, sourceTokens[:left]...)
	avail = append(avail, sourceTokens[right:]...)

	if prefixWant+suffixWant > len(avail) {
		return BuiltContext{Error: ErrInsufficientSource}
	}

	prefixFiller := avail[:prefixWant]
	suffixFiller := avail[prefixWant : prefixWant+suffixWant]

	assembled := make([]int, 0, contextLength)
	assembled = append(assembled, prefixFiller...)
	assembled = append(assembled, evidence...)
	assembled = append(assembled, suffixFiller...)

	text := tok.Decode(assembled)

	actualDepth := 0.0
	if remaining > 0 {
		actualDepth = float64(prefixWant) / float64(remaining)
	}

	return BuiltContext{
		Text:               text,
		ActualDepth:        actualDepth,
		EvidenceTokenStart: prefixWant,
		EvidenceTokenEnd:   prefixWant + e,
		PrefixLen:          prefixWant,
		SuffixLen:          suffixWant,
		OK:                 true,
	}
}
