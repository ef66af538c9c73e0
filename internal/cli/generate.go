package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel-labs/lcbench/internal/generate"
	"github.com/kadirpekel-labs/lcbench/internal/modelclient"
	"github.com/kadirpekel-labs/lcbench/internal/prompt"
	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
)

// GenerateCmd synthesizes a QuestionSet anchored in a novel.
type GenerateCmd struct {
	Novel        string `name:"novel" required:"" type:"path" help:"Path to the novel/source document text file."`
	Output       string `name:"output" required:"" type:"path" help:"Path to write the generated question set JSONL file."`
	Count        int    `name:"count" default:"20" help:"Number of questions to generate."`
	Stride       int    `name:"stride" default:"2000" help:"Token gap between consecutive anchors."`
	WindowRadius int    `name:"window-radius" default:"300" help:"Tokens of surrounding context shown around each anchor."`
	Kind         string `name:"kind" enum:"single_choice,multiple_choice,negative_question" default:"single_choice" help:"Question kind to generate."`
	Templates    string `name:"templates" default:"templates.yaml" type:"path" help:"Prompt template YAML file."`
}

func (c *GenerateCmd) Run(cli *CLI) error {
	cleanup, err := cli.initLogging()
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	modelCfg := loadModelConfig()

	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	if err != nil {
		return fmt.Errorf("cli: init tokenizer: %w", err)
	}

	novelBytes, err := os.ReadFile(c.Novel)
	if err != nil {
		return exitErr(4, "cli: read novel: %w", err)
	}
	sourceTokens := tok.Encode(string(novelBytes))

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	gen := generate.New(tok, invoker, promptStore)
	set, err := gen.Generate(ctx, sourceTokens, generate.Config{
		Count:        c.Count,
		Stride:       c.Stride,
		WindowRadius: c.WindowRadius,
		Kind:         question.Kind(c.Kind),
	})
	if err != nil {
		return fmt.Errorf("cli: generate: %w", err)
	}
	set.Metadata.SourcePath = c.Novel
	set.Metadata.EncodingID = tok.EncodingID()

	out, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("cli: create output file: %w", err)
	}
	defer out.Close()

	if err := question.Write(out, set); err != nil {
		return fmt.Errorf("cli: write question set: %w", err)
	}

	fmt.Fprintf(os.Stderr, "cli: generated %d questions to %s\n", len(set.Questions), c.Output)
	return nil
}
