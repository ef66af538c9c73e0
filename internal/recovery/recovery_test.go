package recovery

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel-labs/lcbench/internal/evalresult"
	"github.com/kadirpekel-labs/lcbench/internal/scheduler"
)

func pendingFor(i, contextLength int, depthBin string) Pending {
	return Pending{
		Assignment: scheduler.Assignment{
			QuestionIndex: i,
			ContextLength: contextLength,
			DepthBin:      depthBin,
		},
		QuestionTextHash: evalresult.HashQuestionText("question text"),
	}
}

// 100 prior results, 90 success and 10 timeout, merged against 100 pending
// assignments for the same cells. Exactly 10 new calls are needed.
func TestMerge_PreservesPriorSuccessesAndRerunsFailures(t *testing.T) {
	var prior []evalresult.Result
	var pending []Pending

	for i := 0; i < 100; i++ {
		hash := evalresult.HashQuestionText(fmt.Sprintf("question text %d", i))
		status := evalresult.StatusSuccess
		if i >= 90 {
			status = evalresult.StatusTimeout
		}
		prior = append(prior, evalresult.Result{
			QuestionIndex:    i,
			QuestionTextHash: hash,
			ContextLength:    4000,
			DepthBin:         "50%",
			ParsingStatus:    status,
		})
		pending = append(pending, Pending{
			Assignment: scheduler.Assignment{
				QuestionIndex: i,
				ContextLength: 4000,
				DepthBin:      "50%",
			},
			QuestionTextHash: hash,
		})
	}

	plan := Merge(prior, pending, KeyModeHash)
	require.Len(t, plan.Reusable, 90)
	require.Len(t, plan.Pending, 10)

	executed := make([]evalresult.Result, len(plan.Pending))
	for i, p := range plan.Pending {
		executed[i] = evalresult.Result{
			QuestionIndex:    p.Assignment.QuestionIndex,
			QuestionTextHash: p.QuestionTextHash,
			ContextLength:    p.Assignment.ContextLength,
			DepthBin:         p.Assignment.DepthBin,
			ParsingStatus:    evalresult.StatusSuccess,
		}
	}
	combined := Combine(plan.Reusable, executed)
	require.Len(t, combined, 100)
}

func TestMerge_RegexExtractedPriorResultIsReused(t *testing.T) {
	hash := evalresult.HashQuestionText("q")
	prior := []evalresult.Result{
		{QuestionTextHash: hash, ContextLength: 1000, DepthBin: "0%", ParsingStatus: evalresult.StatusRegexExtracted},
	}
	pending := []Pending{pendingFor(0, 1000, "0%")}
	pending[0].QuestionTextHash = hash

	plan := Merge(prior, pending, KeyModeHash)
	require.Len(t, plan.Reusable, 1)
	require.Empty(t, plan.Pending)
}

func TestMerge_HashMode_DistinguishesDepthBins(t *testing.T) {
	hash := evalresult.HashQuestionText("q")
	prior := []evalresult.Result{
		{QuestionTextHash: hash, ContextLength: 1000, DepthBin: "0%", ParsingStatus: evalresult.StatusSuccess},
	}
	pending := []Pending{
		pendingFor(0, 1000, "0%"),
		pendingFor(0, 1000, "100%"),
	}
	pending[0].QuestionTextHash = hash
	pending[1].QuestionTextHash = hash

	plan := Merge(prior, pending, KeyModeHash)
	require.Len(t, plan.Reusable, 1)
	require.Len(t, plan.Pending, 1)
	require.Equal(t, "100%", plan.Pending[0].Assignment.DepthBin)
}

func TestMerge_LegacyMode_IgnoresDepthBin(t *testing.T) {
	hash := evalresult.HashQuestionText("q")
	prior := []evalresult.Result{
		{QuestionTextHash: hash, ContextLength: 1000, DepthBin: "", ParsingStatus: evalresult.StatusSuccess},
	}
	pending := []Pending{pendingFor(0, 1000, "")}
	pending[0].QuestionTextHash = hash

	plan := Merge(prior, pending, KeyModeLegacy)
	require.Len(t, plan.Reusable, 1)
	require.Empty(t, plan.Pending)
}

func TestMerge_IndexMode_FallsBackWithoutHash(t *testing.T) {
	prior := []evalresult.Result{
		{QuestionIndex: 3, ContextLength: 1000, DepthBin: "50%", ParsingStatus: evalresult.StatusSuccess},
	}
	pending := []Pending{pendingFor(3, 1000, "50%")}
	pending[0].QuestionTextHash = "" // unavailable in this legacy-index scenario

	plan := Merge(prior, pending, KeyModeIndex)
	require.Len(t, plan.Reusable, 1)
	require.Empty(t, plan.Pending)
}

func TestMerge_FailedPriorResultIsAlwaysRerun(t *testing.T) {
	hash := evalresult.HashQuestionText("q")
	for _, status := range []string{
		evalresult.StatusTimeout,
		evalresult.StatusError,
		evalresult.StatusParsingError,
		evalresult.StatusRefused,
		evalresult.StatusContextBuildError,
	} {
		prior := []evalresult.Result{
			{QuestionTextHash: hash, ContextLength: 1000, DepthBin: "0%", ParsingStatus: status},
		}
		pending := []Pending{pendingFor(0, 1000, "0%")}
		pending[0].QuestionTextHash = hash

		plan := Merge(prior, pending, KeyModeHash)
		require.Empty(t, plan.Reusable, "status=%s", status)
		require.Len(t, plan.Pending, 1, "status=%s", status)
	}
}

func TestMerge_NoPriorResultsRunsEverything(t *testing.T) {
	pending := []Pending{pendingFor(0, 1000, "0%"), pendingFor(1, 1000, "25%")}
	plan := Merge(nil, pending, KeyModeHash)
	require.Empty(t, plan.Reusable)
	require.Len(t, plan.Pending, 2)
}
