package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel-labs/lcbench/internal/modelclient"
	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/scheduler"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
)

type fakeInvoker struct {
	reply func(system, user string) (string, modelclient.Status, error)
	delay time.Duration
	calls int
}

func (f *fakeInvoker) Call(ctx context.Context, system, user string) (string, modelclient.Status, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", modelclient.StatusTimeout, ctx.Err()
		}
	}
	return f.reply(system, user)
}

type fakePrompts struct{}

func (fakePrompts) Build(q question.Question, contextText string) (string, string) {
	return "system", fmt.Sprintf("Q: %s\nContext: %s", q.Text, contextText)
}

func makeQuestions(n int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			Text: fmt.Sprintf("question %d?", i),
			Kind: question.KindSingleChoice,
			Choices: map[string]string{
				"a": "yes",
				"b": "no",
			},
			Answer:   []string{"a"},
			Position: question.Position{StartPos: 5, EndPos: 10},
		}
	}
	return qs
}

func longSource(t *testing.T, numSentences int) []int {
	t.Helper()
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	var sb strings.Builder
	for i := 0; i < numSentences; i++ {
		sb.WriteString("This is sentence number filler text here today. ")
	}
	return tok.Encode(sb.String())
}

func TestRun_SuccessScoring(t *testing.T) {
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	src := longSource(t, 500)
	questions := makeQuestions(3)

	assignments, err := scheduler.Schedule(3, scheduler.Config{Mode: scheduler.ModeFixed, ContextLengths: []int{2000}, FixedDepth: 0.5})
	require.NoError(t, err)

	invoker := &fakeInvoker{reply: func(system, user string) (string, modelclient.Status, error) {
		return `{"answer": ["a"]}`, modelclient.StatusSuccess, nil
	}}

	results, err := Run(context.Background(), Config{Concurrency: 2, Padding: 10}, tok, src, questions, assignments, invoker, fakePrompts{}, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		require.Equal(t, "success", r.ParsingStatus)
		require.Equal(t, 1.0, r.Score)
	}
}

func TestRun_RegexExtractedReplyStillScoresButKeepsDistinctStatus(t *testing.T) {
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	src := longSource(t, 500)
	questions := makeQuestions(1)
	assignments, err := scheduler.Schedule(1, scheduler.Config{Mode: scheduler.ModeFixed, ContextLengths: []int{2000}, FixedDepth: 0.5})
	require.NoError(t, err)

	invoker := &fakeInvoker{reply: func(system, user string) (string, modelclient.Status, error) {
		return `The answer is (a).`, modelclient.StatusSuccess, nil
	}}

	results, err := Run(context.Background(), Config{Concurrency: 1, Padding: 10}, tok, src, questions, assignments, invoker, fakePrompts{}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "regex_extracted", results[0].ParsingStatus)
	require.Equal(t, 1.0, results[0].Score)
}

func TestRun_ParsingErrorStatus(t *testing.T) {
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	src := longSource(t, 500)
	questions := makeQuestions(1)
	assignments, err := scheduler.Schedule(1, scheduler.Config{Mode: scheduler.ModeFixed, ContextLengths: []int{2000}, FixedDepth: 0.5})
	require.NoError(t, err)

	invoker := &fakeInvoker{reply: func(system, user string) (string, modelclient.Status, error) {
		return "not json at all and no letter either", modelclient.StatusSuccess, nil
	}}

	results, err := Run(context.Background(), Config{Concurrency: 1, Padding: 10}, tok, src, questions, assignments, invoker, fakePrompts{}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "parsing_error", results[0].ParsingStatus)
}

func TestRun_TimeoutStatus(t *testing.T) {
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	src := longSource(t, 500)
	questions := makeQuestions(1)
	assignments, err := scheduler.Schedule(1, scheduler.Config{Mode: scheduler.ModeFixed, ContextLengths: []int{2000}, FixedDepth: 0.5})
	require.NoError(t, err)

	invoker := &fakeInvoker{delay: 50 * time.Millisecond, reply: func(system, user string) (string, modelclient.Status, error) {
		return "", modelclient.StatusTimeout, context.DeadlineExceeded
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	results, _ := Run(ctx, Config{Concurrency: 1, Padding: 10}, tok, src, questions, assignments, invoker, fakePrompts{}, nil)
	require.Len(t, results, 1)
	require.Equal(t, "timeout", results[0].ParsingStatus)
}

func TestRun_LegacyModeUsesFirstLTokens(t *testing.T) {
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	src := longSource(t, 500)
	questions := makeQuestions(1)
	assignments, err := scheduler.Schedule(1, scheduler.Config{Mode: scheduler.ModeLegacy, ContextLengths: []int{50}})
	require.NoError(t, err)

	var seenContext string
	invoker := &fakeInvoker{reply: func(system, user string) (string, modelclient.Status, error) {
		seenContext = user
		return `{"answer": ["a"]}`, modelclient.StatusSuccess, nil
	}}

	results, err := Run(context.Background(), Config{Concurrency: 1}, tok, src, questions, assignments, invoker, fakePrompts{}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, -1.0, results[0].ActualDepth)
	require.NotEmpty(t, seenContext)
}

// Property 12: the result multiset is identical regardless of worker pool
// size, given a deterministic model.
func TestRun_ConcurrencySafety_MultisetEquality(t *testing.T) {
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	src := longSource(t, 2000)
	questions := makeQuestions(20)
	assignments, err := scheduler.Schedule(20, scheduler.Config{Mode: scheduler.ModeUniform, ContextLengths: []int{3000}})
	require.NoError(t, err)

	newInvoker := func() *fakeInvoker {
		return &fakeInvoker{reply: func(system, user string) (string, modelclient.Status, error) {
			return `{"answer": ["a"]}`, modelclient.StatusSuccess, nil
		}}
	}

	var baseline []string
	for _, k := range []int{1, 3, 7, 20} {
		results, err := Run(context.Background(), Config{Concurrency: k, Padding: 10}, tok, src, questions, assignments, newInvoker(), fakePrompts{}, nil)
		require.NoError(t, err)
		require.Len(t, results, 20)

		keys := make([]string, len(results))
		for i, r := range results {
			keys[i] = fmt.Sprintf("%d|%d|%s|%s", r.QuestionIndex, r.ContextLength, r.DepthBin, r.ParsingStatus)
		}
		sort.Strings(keys)
		if baseline == nil {
			baseline = keys
		} else {
			require.Equal(t, baseline, keys, "concurrency=%d", k)
		}
	}
}

func TestRun_ProgressTracking(t *testing.T) {
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	src := longSource(t, 500)
	questions := makeQuestions(5)
	assignments, err := scheduler.Schedule(5, scheduler.Config{Mode: scheduler.ModeFixed, ContextLengths: []int{2000}, FixedDepth: 0.0})
	require.NoError(t, err)

	invoker := &fakeInvoker{reply: func(system, user string) (string, modelclient.Status, error) {
		return `{"answer": ["a"]}`, modelclient.StatusSuccess, nil
	}}

	progress := NewProgress(5)
	_, err = Run(context.Background(), Config{Concurrency: 2, Padding: 10}, tok, src, questions, assignments, invoker, fakePrompts{}, progress)
	require.NoError(t, err)

	stats := progress.Snapshot()
	require.EqualValues(t, 5, stats.Dispatched)
	require.EqualValues(t, 5, stats.Completed)
	require.EqualValues(t, 0, stats.InFlight)
}

func TestRun_RejectsNonPositiveConcurrency(t *testing.T) {
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	_, err = Run(context.Background(), Config{Concurrency: 0}, tok, nil, nil, nil, nil, fakePrompts{}, nil)
	require.Error(t, err)
}
