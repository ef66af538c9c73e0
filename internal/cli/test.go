package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kadirpekel-labs/lcbench/internal/answer"
	"github.com/kadirpekel-labs/lcbench/internal/evalresult"
	"github.com/kadirpekel-labs/lcbench/internal/metrics"
	"github.com/kadirpekel-labs/lcbench/internal/modelclient"
	"github.com/kadirpekel-labs/lcbench/internal/pipeline"
	"github.com/kadirpekel-labs/lcbench/internal/prompt"
	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/recovery"
	"github.com/kadirpekel-labs/lcbench/internal/scheduler"
	"github.com/kadirpekel-labs/lcbench/internal/scorer"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
)

// TestCmd runs the benchmark over one novel and one question set.
type TestCmd struct {
	Novel          string   `name:"novel" required:"" type:"path" help:"Path to the novel/source document text file."`
	DataSet        string   `name:"data_set" required:"" type:"path" help:"Path to the question set JSONL file."`
	Output         string   `name:"output" required:"" type:"path" help:"Path to write the result JSONL file."`
	Concurrency    int      `name:"concurrency" default:"4" help:"Bounded worker pool size."`
	ContextLength  int      `name:"context_length" help:"Legacy single context length in tokens."`
	ContextLengths string   `name:"context-lengths" help:"Comma-separated context lengths in tokens."`
	DepthMode      string   `name:"depth-mode" enum:"legacy,uniform,fixed" default:"legacy" help:"Depth scheduling mode."`
	Depth          *float64 `name:"depth" help:"Fixed target depth in [0,1]; required when --depth-mode=fixed."`
	PaddingSize    int      `name:"padding_size" default:"200" help:"Token slack around evidence before boundary snapping."`
	MaxQuestions   int      `name:"max-questions" help:"Cap on number of questions scheduled (0 = no cap)."`
	Recovery       string   `name:"recovery" type:"path" help:"Prior result JSONL file to resume from."`
	SkipValidation bool     `name:"skip-validation" help:"Allow questions lacking a validation field."`
	IgnoreInvalid  bool     `name:"ignore-invalid" help:"Drop questions whose validation.is_valid is false instead of failing."`
	NoReference    bool     `name:"no-reference" help:"Score against the question set's novel_summary instead of a positioned context."`
	Templates      string   `name:"templates" default:"templates.yaml" type:"path" help:"Prompt template YAML file."`
}

// validateArgs enforces the CLI's argument-conflict exit-2 rule. It is
// called explicitly at the top of Run rather than relied on as an
// undocumented kong lifecycle hook.
func (c *TestCmd) validateArgs() error {
	hasLegacyLength := c.ContextLength > 0
	hasLengths := c.ContextLengths != ""

	if !c.NoReference && hasLegacyLength == hasLengths {
		return exitErr(2, "cli: exactly one of --context_length or --context-lengths must be given")
	}
	if c.NoReference && hasLengths {
		return exitErr(2, "cli: --no-reference cannot be combined with --context-lengths")
	}
	if c.NoReference && hasLegacyLength {
		return exitErr(2, "cli: --no-reference cannot be combined with --context_length")
	}
	if c.DepthMode == string(scheduler.ModeFixed) && c.Depth == nil {
		return exitErr(2, "cli: --depth-mode=fixed requires --depth")
	}
	if c.DepthMode != string(scheduler.ModeLegacy) && hasLegacyLength {
		return exitErr(2, "cli: --depth-mode=%s requires --context-lengths, not legacy --context_length", c.DepthMode)
	}
	if c.Concurrency <= 0 {
		return exitErr(2, "cli: --concurrency must be positive")
	}
	return nil
}

func parseContextLengths(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	lengths := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("cli: invalid --context-lengths entry %q: %w", p, err)
		}
		lengths = append(lengths, n)
	}
	return lengths, nil
}

func (c *TestCmd) Run(cli *CLI) error {
	if err := c.validateArgs(); err != nil {
		return err
	}

	cleanup, err := cli.initLogging()
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	modelCfg := loadModelConfig()
	if c.Concurrency > 0 {
		modelCfg.Concurrency = c.Concurrency
	}

	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	if err != nil {
		return fmt.Errorf("cli: init tokenizer: %w", err)
	}

	novelBytes, err := os.ReadFile(c.Novel)
	if err != nil {
		return exitErr(4, "cli: read novel: %w", err)
	}
	sourceTokens := tok.Encode(string(novelBytes))

	dataSetFile, err := os.Open(c.DataSet)
	if err != nil {
		return fmt.Errorf("cli: open data set: %w", err)
	}
	defer dataSetFile.Close()

	set, loadStats, err := question.Load(dataSetFile, len(sourceTokens))
	if err != nil {
		return fmt.Errorf("cli: load question set: %w", err)
	}
	if loadStats.SkippedLines > 0 {
		fmt.Fprintf(os.Stderr, "cli: skipped %d/%d malformed or invalid lines in %s\n",
			loadStats.SkippedLines, loadStats.TotalLines, c.DataSet)
	}

	filtered, err := question.PreCheck(set.Questions, question.PreCheckOptions{
		SkipValidation: c.SkipValidation,
		IgnoreInvalid:  c.IgnoreInvalid,
	})
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	set.Questions = filtered

	promptStore, err := prompt.Load(c.Templates)
	if err != nil {
		return fmt.Errorf("cli: load prompt templates: %w", err)
	}

	invoker := modelclient.New(modelclient.Config{
		Endpoint:       modelCfg.BaseURL,
		APIKey:         modelCfg.APIKey,
		Model:          modelCfg.ModelName,
		PerCallTimeout: modelCfg.Timeout,
	})

	var recorder *metrics.Recorder
	if cli.MetricsAddr != "" {
		recorder = metrics.New()
		go serveMetrics(cli.MetricsAddr, recorder)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if c.NoReference {
		return c.runNoReference(ctx, set, invoker, promptStore, recorder)
	}
	return c.runPositioned(ctx, tok, sourceTokens, set, invoker, promptStore, recorder)
}

func (c *TestCmd) buildSchedulerConfig() (scheduler.Config, error) {
	cfg := scheduler.Config{Mode: scheduler.Mode(c.DepthMode), MaxQuestions: c.MaxQuestions}
	if c.ContextLength > 0 {
		cfg.ContextLengths = []int{c.ContextLength}
	} else {
		lengths, err := parseContextLengths(c.ContextLengths)
		if err != nil {
			return scheduler.Config{}, err
		}
		cfg.ContextLengths = lengths
	}
	if c.Depth != nil {
		cfg.FixedDepth = *c.Depth
	}
	return cfg, nil
}

func (c *TestCmd) runPositioned(ctx context.Context, tok *tokenizer.Tokenizer, sourceTokens []int, set question.QuestionSet, invoker modelclient.Invoker, promptStore *prompt.Store, recorder *metrics.Recorder) error {
	schedCfg, err := c.buildSchedulerConfig()
	if err != nil {
		return exitErr(2, "cli: %w", err)
	}

	for _, length := range schedCfg.ContextLengths {
		if length > len(sourceTokens) {
			return exitErr(4, "cli: novel has only %d tokens, shorter than requested context length %d", len(sourceTokens), length)
		}
	}

	assignments, err := scheduler.Schedule(len(set.Questions), schedCfg)
	if err != nil {
		return fmt.Errorf("cli: schedule: %w", err)
	}

	var reusable []evalresult.Result
	if c.Recovery != "" {
		assignments, reusable, err = c.applyRecovery(set, assignments)
		if err != nil {
			return err
		}
	}

	progress := pipeline.NewProgress(len(assignments))
	reporter := startProgressReporter(progress, time.Second)
	results, err := pipeline.Run(ctx, pipeline.Config{Concurrency: c.Concurrency, Padding: c.PaddingSize},
		tok, sourceTokens, set.Questions, assignments, invoker, prompt.TestingBuilder{Store: promptStore}, progress)
	reporter.stop()
	if err != nil && len(results) == 0 {
		return fmt.Errorf("cli: pipeline: %w", err)
	}
	recordResults(recorder, results)

	all := recovery.Combine(reusable, results)
	if length, insufficient := insufficientSourceLength(all); insufficient {
		return exitErr(4, "cli: every assignment at context length %d failed with context_build_error; source is too short for this length", length)
	}
	return writeResults(c.Output, c, all)
}

// insufficientSourceLength reports the first context length for which every
// result came back context_build_error: the source document is too short to
// place evidence at that length for any assignment.
func insufficientSourceLength(results []evalresult.Result) (int, bool) {
	total := make(map[int]int)
	failed := make(map[int]int)
	var order []int
	for _, r := range results {
		if _, ok := total[r.ContextLength]; !ok {
			order = append(order, r.ContextLength)
		}
		total[r.ContextLength]++
		if r.ParsingStatus == evalresult.StatusContextBuildError {
			failed[r.ContextLength]++
		}
	}
	for _, length := range order {
		if total[length] > 0 && total[length] == failed[length] {
			return length, true
		}
	}
	return 0, false
}

func (c *TestCmd) applyRecovery(set question.QuestionSet, assignments []scheduler.Assignment) ([]scheduler.Assignment, []evalresult.Result, error) {
	f, err := os.Open(c.Recovery)
	if err != nil {
		return nil, nil, fmt.Errorf("cli: open recovery file: %w", err)
	}
	defer f.Close()

	_, prior, err := evalresult.ReadAll(f)
	if err != nil {
		return nil, nil, fmt.Errorf("cli: read recovery file: %w", err)
	}

	pending := make([]recovery.Pending, len(assignments))
	for i, a := range assignments {
		pending[i] = recovery.Pending{
			Assignment:       a,
			QuestionTextHash: evalresult.HashQuestionText(set.Questions[a.QuestionIndex].Text),
		}
	}

	plan := recovery.Merge(prior, pending, recovery.KeyModeHash)
	remaining := make([]scheduler.Assignment, len(plan.Pending))
	for i, p := range plan.Pending {
		remaining[i] = p.Assignment
	}
	return remaining, plan.Reusable, nil
}

// runNoReference scores each question against the question set's
// novel_summary instead of a positioned context.
func (c *TestCmd) runNoReference(ctx context.Context, set question.QuestionSet, invoker modelclient.Invoker, promptStore *prompt.Store, recorder *metrics.Recorder) error {
	builder := prompt.TestingBuilder{Store: promptStore}
	results := make([]evalresult.Result, len(set.Questions))

	progress := pipeline.NewProgress(len(set.Questions))
	reporter := startProgressReporter(progress, time.Second)
	defer reporter.stop()

	for i, q := range set.Questions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		progress.Dispatch()
		system, user := builder.Build(q, set.Metadata.NovelSummary)
		reply, status, err := invoker.Call(ctx, system, user)

		r := evalresult.Result{
			QuestionIndex:    i,
			QuestionTextHash: evalresult.HashQuestionText(q.Text),
			Kind:             string(q.Kind),
			CorrectAnswer:    q.Answer,
			TargetDepth:      -1,
		}
		if err != nil || status != modelclient.StatusSuccess {
			r.ParsingStatus = modelStatusToResultStatus(status)
			if err != nil {
				r.Error = err.Error()
			}
			results[i] = r
			recordResult(recorder, r)
			progress.Complete(r.ParsingStatus)
			continue
		}

		finishResult(&r, reply, q)
		results[i] = r
		recordResult(recorder, r)
		progress.Complete(r.ParsingStatus)
	}

	return writeResults(c.Output, c, results)
}

func finishResult(r *evalresult.Result, reply string, q question.Question) {
	validKeys := make(map[string]struct{}, len(q.Choices))
	for k := range q.Choices {
		validKeys[k] = struct{}{}
	}

	modelAnswer, parseStatus := answer.Parse(reply, validKeys)
	if parseStatus == answer.StatusParsingError {
		r.ParsingStatus = evalresult.StatusParsingError
		r.RawReply = reply
		return
	}

	score, metricsOut := scorer.Score(scorer.Kind(q.Kind), modelAnswer, q.Answer)
	if parseStatus == answer.StatusRegexExtracted {
		r.ParsingStatus = evalresult.StatusRegexExtracted
	} else {
		r.ParsingStatus = evalresult.StatusSuccess
	}
	r.ModelAnswer = modelAnswer
	r.Score = score
	r.Metrics = metricsOut
}

func modelStatusToResultStatus(status modelclient.Status) string {
	switch status {
	case modelclient.StatusTimeout:
		return evalresult.StatusTimeout
	case modelclient.StatusRefused:
		return evalresult.StatusRefused
	default:
		return evalresult.StatusError
	}
}

func recordResults(recorder *metrics.Recorder, results []evalresult.Result) {
	for _, r := range results {
		recordResult(recorder, r)
	}
}

func recordResult(recorder *metrics.Recorder, r evalresult.Result) {
	recorder.RecordResult(r.ParsingStatus, r.Kind, r.Score, r.ParsingStatus == evalresult.StatusSuccess || r.ParsingStatus == evalresult.StatusRegexExtracted)
}

func writeResults(path string, c *TestCmd, results []evalresult.Result) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cli: create output file: %w", err)
	}
	defer out.Close()

	meta := evalresult.NewMetadata(evalresult.Metadata{
		NovelPath:       c.Novel,
		QuestionSetPath: c.DataSet,
		DepthMode:       c.DepthMode,
		PaddingSize:     c.PaddingSize,
	})
	if c.NoReference {
		meta.TestMode = "no_reference"
	} else {
		meta.TestMode = "with_reference"
	}
	if c.ContextLength > 0 {
		meta.ContextLength = c.ContextLength
	} else if lengths, err := parseContextLengths(c.ContextLengths); err == nil {
		meta.ContextLengths = lengths
	}

	return evalresult.WriteAll(out, &meta, results)
}
