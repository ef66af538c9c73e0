package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kadirpekel-labs/lcbench/internal/aggregator"
	"github.com/kadirpekel-labs/lcbench/internal/evalresult"
	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/scheduler"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
)

// ReportCmd aggregates a result file (plus the question set and novel it was
// produced against) into position/depth heatmaps.
type ReportCmd struct {
	Novel   string `name:"novel" required:"" type:"path" help:"Path to the novel/source document text file."`
	DataSet string `name:"data_set" required:"" type:"path" help:"Path to the question set JSONL file the results were scored against."`
	Results string `name:"results" required:"" type:"path" help:"Path to the result JSONL file to aggregate."`
	Output  string `name:"output" required:"" type:"path" help:"Path to write the JSON heatmap report."`
	Bins    int    `name:"bins" default:"10" help:"Number of 1-D position bins."`
}

// report is the JSON shape written to Output.
type report struct {
	PositionBins []aggregator.PositionBin `json:"position_bins"`
	DepthCells   []aggregator.DepthCell   `json:"depth_cells"`
}

func (c *ReportCmd) Run(cli *CLI) error {
	cleanup, err := cli.initLogging()
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	if err != nil {
		return fmt.Errorf("cli: init tokenizer: %w", err)
	}

	novelBytes, err := os.ReadFile(c.Novel)
	if err != nil {
		return exitErr(4, "cli: read novel: %w", err)
	}
	totalTokens := tok.Count(string(novelBytes))

	dataSetFile, err := os.Open(c.DataSet)
	if err != nil {
		return fmt.Errorf("cli: open data set: %w", err)
	}
	set, _, err := question.Load(dataSetFile, totalTokens)
	dataSetFile.Close()
	if err != nil {
		return fmt.Errorf("cli: load question set: %w", err)
	}

	resultsFile, err := os.Open(c.Results)
	if err != nil {
		return fmt.Errorf("cli: open results: %w", err)
	}
	meta, results, err := evalresult.ReadAll(resultsFile)
	resultsFile.Close()
	if err != nil {
		return fmt.Errorf("cli: read results: %w", err)
	}

	spans := make([]aggregator.Span, len(set.Questions))
	for i, q := range set.Questions {
		spans[i] = aggregator.Span{StartPos: q.Position.StartPos, EndPos: q.Position.EndPos}
	}

	scoreByQuestionIndex := make(map[int]float64, len(results))
	for _, r := range results {
		scoreByQuestionIndex[r.QuestionIndex] = r.Score
	}

	contextLengths := contextLengthsFromMetadata(meta)
	if len(contextLengths) == 0 {
		contextLengths = distinctContextLengths(results)
	}
	depthBinLabels := make([]string, len(scheduler.DepthBins))
	for i, b := range scheduler.DepthBins {
		depthBinLabels[i] = b.Label
	}

	rep := report{
		PositionBins: aggregator.PositionBins(spans, scoreByQuestionIndex, totalTokens, c.Bins),
		DepthCells:   aggregator.DepthCells(results, contextLengths, depthBinLabels),
	}

	out, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("cli: create output file: %w", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("cli: write report: %w", err)
	}
	return nil
}

func distinctContextLengths(results []evalresult.Result) []int {
	seen := make(map[int]struct{})
	var lengths []int
	for _, r := range results {
		if _, ok := seen[r.ContextLength]; !ok {
			seen[r.ContextLength] = struct{}{}
			lengths = append(lengths, r.ContextLength)
		}
	}
	return lengths
}

func contextLengthsFromMetadata(meta *evalresult.Metadata) []int {
	if meta == nil {
		return nil
	}
	if len(meta.ContextLengths) > 0 {
		return meta.ContextLengths
	}
	if meta.ContextLength > 0 {
		return []int{meta.ContextLength}
	}
	return nil
}
