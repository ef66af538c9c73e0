package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel-labs/lcbench/internal/modelclient"
	"github.com/kadirpekel-labs/lcbench/internal/prompt"
	"github.com/kadirpekel-labs/lcbench/internal/question"
	"github.com/kadirpekel-labs/lcbench/internal/tokenizer"
	"github.com/kadirpekel-labs/lcbench/internal/validate"
)

// ValidateCmd re-asks an independent model each question in a generated
// question set and stamps validation.is_valid.
type ValidateCmd struct {
	Novel     string `name:"novel" required:"" type:"path" help:"Path to the novel/source document text file."`
	DataSet   string `name:"data_set" required:"" type:"path" help:"Path to the question set JSONL file to validate."`
	Output    string `name:"output" required:"" type:"path" help:"Path to write the validated question set JSONL file."`
	Templates string `name:"templates" default:"templates.yaml" type:"path" help:"Prompt template YAML file."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
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

	dataSetFile, err := os.Open(c.DataSet)
	if err != nil {
		return fmt.Errorf("cli: open data set: %w", err)
	}
	set, _, err := question.Load(dataSetFile, len(sourceTokens))
	dataSetFile.Close()
	if err != nil {
		return fmt.Errorf("cli: load question set: %w", err)
	}

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

	validator := validate.New(tok, invoker, promptStore, modelCfg.ModelName)

	for i := range set.Questions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		result, err := validator.Validate(ctx, sourceTokens, set.Questions[i])
		if err != nil {
			return fmt.Errorf("cli: validate question %d: %w", i, err)
		}
		set.Questions[i].Validation = &result
	}

	out, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("cli: create output file: %w", err)
	}
	defer out.Close()

	if err := question.Write(out, set); err != nil {
		return fmt.Errorf("cli: write question set: %w", err)
	}

	valid := 0
	for _, q := range set.Questions {
		if q.Validation != nil && q.Validation.IsValid {
			valid++
		}
	}
	fmt.Fprintf(os.Stderr, "cli: validated %d/%d questions as valid\n", valid, len(set.Questions))
	return nil
}
