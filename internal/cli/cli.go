// Package cli wires the kong command surface onto the core packages,
// translating CLI flags into scheduler/pipeline/aggregator invocations.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kadirpekel-labs/lcbench/internal/config"
	"github.com/kadirpekel-labs/lcbench/internal/logger"
)

// ExitError carries a specific process exit code from a command's Run back to
// main, which unwraps it with errors.As and exits with Code: 0 success, 2
// invalid argument combination, 3 data validation failure, 4 insufficient
// source material.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func exitErr(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

// CLI is the top-level kong command tree.
type CLI struct {
	Test     TestCmd     `cmd:"" help:"Run the long-context benchmark over a novel and question set."`
	Generate GenerateCmd `cmd:"" help:"Synthesize a question set anchored in a novel."`
	Validate ValidateCmd `cmd:"" help:"Re-ask an independent model to validate a generated question set."`
	Report   ReportCmd   `cmd:"" help:"Aggregate a result file into position/depth heatmaps."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)." type:"path"`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`

	MetricsAddr string `help:"Address to serve Prometheus /metrics on (empty disables the server)." placeholder:"HOST:PORT"`
}

// initLogging configures the shared slog logger from CLI-level flags.
func (c *CLI) initLogging() (func(), error) {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, exitErr(2, "cli: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if c.LogFile != "" {
		f, closeFn, err := logger.OpenLogFile(c.LogFile)
		if err != nil {
			return nil, fmt.Errorf("cli: open log file: %w", err)
		}
		output = f
		cleanup = closeFn
	}

	logger.Init(level, output, c.LogFormat)
	return cleanup, nil
}

// loadModelConfig composes config.FromEnvironment() with .env file loading.
func loadModelConfig() config.ModelConfig {
	if err := config.LoadEnvFiles(); err != nil {
		slog.Debug("cli: no .env file loaded", "error", err)
	}
	return config.FromEnvironment()
}
