// Package pipeline is the bounded-concurrency execution driver: for each
// scheduled assignment it builds a context, invokes the model, parses the
// reply, scores it, and emits one result.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel-labs/lcbench/internal/answer"
	"github.com/kadirpekel-labs/lcbench/internal/contextbuilder"
	"github.com/kadirpekel-labs/lcbench/internal/evalresult"
	"github.com/kadirpekel-labs/lcbench/internal/modelclient"
	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/scheduler"
	"github.com/kadirpekel-labs/lcbench/internal/scorer"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
)

// PromptBuilder renders the system/user turn for one question inside one
// built context. A real implementation wraps internal/prompt.Store;
// pipeline depends only on this narrow interface so its tests never touch
// YAML template files.
type PromptBuilder interface {
	Build(q question.Question, contextText string) (system, user string)
}

// Config parameterizes Run.
type Config struct {
	Concurrency int // K, the bounded worker pool size
	Padding     int // tokens of slack around evidence before boundary snapping
}

// Run executes every assignment against source/questions and returns one
// Result per assignment. Assignment.QuestionIndex indexes into questions.
// Results are returned in assignment order. If ctx ends before every
// assignment is dispatched, the undispatched ones have no Result.
func Run(
	ctx context.Context,
	cfg Config,
	tok *tokenizer.Tokenizer,
	source []int,
	questions []question.Question,
	assignments []scheduler.Assignment,
	invoker modelclient.Invoker,
	prompts PromptBuilder,
	progress *Progress,
) ([]evalresult.Result, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("pipeline: concurrency must be positive, got %d", cfg.Concurrency)
	}

	sem := semaphore.NewWeighted(int64(cfg.Concurrency))
	results := make([]evalresult.Result, len(assignments))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, a := range assignments {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context canceled (or deadline exceeded) before this
			// assignment could start: stop dispatching new work. Already
			// dispatched goroutines still run to completion below.
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}

		if progress != nil {
			progress.Dispatch()
		}

		wg.Add(1)
		go func(idx int, a scheduler.Assignment) {
			defer wg.Done()
			defer sem.Release(1)

			r := execute(ctx, cfg.Padding, tok, source, questions, a, invoker, prompts)
			results[idx] = r

			if progress != nil {
				progress.Complete(r.ParsingStatus)
			}
		}(i, a)
	}

	wg.Wait()

	// Assignments never dispatched (because the loop broke early on
	// cancellation) leave their slot zero-valued; trim them rather than
	// emit empty records.
	out := results[:0:0]
	for _, r := range results {
		if r.ParsingStatus == "" {
			continue
		}
		out = append(out, r)
	}

	return out, firstErr
}

func execute(
	ctx context.Context,
	padding int,
	tok *tokenizer.Tokenizer,
	source []int,
	questions []question.Question,
	a scheduler.Assignment,
	invoker modelclient.Invoker,
	prompts PromptBuilder,
) evalresult.Result {
	q := questions[a.QuestionIndex]
	hash := evalresult.HashQuestionText(q.Text)

	base := evalresult.Result{
		QuestionIndex:    a.QuestionIndex,
		QuestionTextHash: hash,
		ContextLength:    a.ContextLength,
		DepthBin:         a.DepthBin,
		TargetDepth:      a.TargetDepth,
		Kind:             string(q.Kind),
		CorrectAnswer:    q.Answer,
	}

	if a.TargetDepth < 0 {
		// Legacy mode: no depth placement, just the first context_length
		// tokens of the source.
		base.ActualDepth = -1
		end := min(a.ContextLength, len(source))
		return callAndScore(ctx, base, q, tok.Decode(source[:end]), invoker, prompts)
	}

	bc := contextbuilder.Build(tok, source, q.Position, a.TargetDepth, a.ContextLength, padding)
	if !bc.OK {
		base.ParsingStatus = evalresult.StatusContextBuildError
		base.Error = bc.Error.Error()
		return base
	}
	base.ActualDepth = bc.ActualDepth
	return callAndScore(ctx, base, q, bc.Text, invoker, prompts)
}

func callAndScore(
	ctx context.Context,
	base evalresult.Result,
	q question.Question,
	contextText string,
	invoker modelclient.Invoker,
	prompts PromptBuilder,
) evalresult.Result {
	system, user := prompts.Build(q, contextText)

	reply, status, err := invoker.Call(ctx, system, user)
	switch status {
	case modelclient.StatusTimeout:
		base.ParsingStatus = evalresult.StatusTimeout
		base.Error = errString(err)
		return base
	case modelclient.StatusError:
		base.ParsingStatus = evalresult.StatusError
		base.Error = errString(err)
		return base
	case modelclient.StatusRefused:
		base.ParsingStatus = evalresult.StatusRefused
		base.RawReply = reply
		return base
	}

	base.RawReply = reply

	validKeys := make(map[string]struct{}, len(q.Choices))
	for k := range q.Choices {
		validKeys[k] = struct{}{}
	}

	modelAnswer, parseStatus := answer.Parse(reply, validKeys)
	if parseStatus == answer.StatusParsingError {
		base.ParsingStatus = evalresult.StatusParsingError
		return base
	}

	base.ModelAnswer = modelAnswer
	score, metrics := scorer.Score(scorer.Kind(q.Kind), modelAnswer, q.Answer)
	base.Score = score
	base.Metrics = metrics
	if parseStatus == answer.StatusRegexExtracted {
		base.ParsingStatus = evalresult.StatusRegexExtracted
	} else {
		base.ParsingStatus = evalresult.StatusSuccess
	}
	return base
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
