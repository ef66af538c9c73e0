// Package recovery merges a prior run's results with the current run's
// assignment plan, so that an interrupted or partially-failed run can be
// resumed without re-invoking the model for cells that already succeeded.
package recovery

import (
	"strconv"

	"github.com/kadirpekel-labs/lcbench/internal/evalresult"
	"github.com/kadirpekel-labs/lcbench/internal/scheduler"
)

// KeyMode selects how a prior result is matched against a pending
// assignment. Older result files may lack a question_text_hash or a
// depth_bin (legacy, non-depth-aware runs), so the merger supports falling
// back to weaker keys.
type KeyMode string

const (
	// KeyModeHash matches on (question_text_hash, context_length, depth_bin).
	// This is the default and the only mode that is robust to the question
	// set being reordered or regenerated with extra/fewer items.
	KeyModeHash KeyMode = "hash"
	// KeyModeLegacy matches on (question_text_hash, context_length) only,
	// for prior results produced before depth scheduling existed.
	KeyModeLegacy KeyMode = "legacy"
	// KeyModeIndex matches on (question_index, context_length, depth_bin),
	// for prior results produced before question_text_hash was recorded.
	KeyModeIndex KeyMode = "index"
)

// Pending is one assignment awaiting execution, carrying the identity
// fields needed to look it up in a prior run's results.
type Pending struct {
	Assignment       scheduler.Assignment
	QuestionTextHash string
}

// Plan is the output of Merge: Reusable holds prior results that can stand
// in for their assignment without calling the model again; Pending holds
// the assignments that must still be executed.
type Plan struct {
	Reusable []evalresult.Result
	Pending  []Pending
}

// Merge partitions assignments into those already satisfied by a successful
// prior result and those that still need to run. A prior result only
// satisfies an assignment when its ParsingStatus is StatusSuccess or
// StatusRegexExtracted; failed prior attempts (timeout, error,
// parsing_error, ...) are always re-queued for execution.
func Merge(prior []evalresult.Result, assignments []Pending, mode KeyMode) Plan {
	index := make(map[string]evalresult.Result, len(prior))
	for _, r := range prior {
		if r.ParsingStatus != evalresult.StatusSuccess && r.ParsingStatus != evalresult.StatusRegexExtracted {
			continue
		}
		index[priorKey(mode, r.QuestionTextHash, r.QuestionIndex, r.ContextLength, r.DepthBin)] = r
	}

	plan := Plan{
		Reusable: make([]evalresult.Result, 0, len(assignments)),
		Pending:  make([]Pending, 0, len(assignments)),
	}

	for _, p := range assignments {
		k := pendingKey(mode, p)
		if r, ok := index[k]; ok {
			plan.Reusable = append(plan.Reusable, r)
			continue
		}
		plan.Pending = append(plan.Pending, p)
	}

	return plan
}

// Combine concatenates reused and freshly executed results into the final
// output set. It does not sort: callers that need a stable order should
// sort the combined slice themselves, since aggregation does not depend on
// ordering.
func Combine(reusable, executed []evalresult.Result) []evalresult.Result {
	out := make([]evalresult.Result, 0, len(reusable)+len(executed))
	out = append(out, reusable...)
	out = append(out, executed...)
	return out
}

func priorKey(mode KeyMode, hash string, index, contextLength int, depthBin string) string {
	switch mode {
	case KeyModeLegacy:
		return hash + "|" + strconv.Itoa(contextLength)
	case KeyModeIndex:
		return strconv.Itoa(index) + "|" + strconv.Itoa(contextLength) + "|" + depthBin
	default:
		return hash + "|" + strconv.Itoa(contextLength) + "|" + depthBin
	}
}

func pendingKey(mode KeyMode, p Pending) string {
	a := p.Assignment
	switch mode {
	case KeyModeLegacy:
		return p.QuestionTextHash + "|" + strconv.Itoa(a.ContextLength)
	case KeyModeIndex:
		return strconv.Itoa(a.QuestionIndex) + "|" + strconv.Itoa(a.ContextLength) + "|" + a.DepthBin
	default:
		return p.QuestionTextHash + "|" + strconv.Itoa(a.ContextLength) + "|" + a.DepthBin
	}
}
