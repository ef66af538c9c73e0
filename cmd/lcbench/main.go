// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command lcbench benchmarks how well a model answers questions anchored at
// controlled positions and depths within a long document.
//
// Usage:
//
//	lcbench test --novel book.txt --data_set questions.jsonl --output results.jsonl --context-lengths 4000,8000 --depth-mode uniform
//	lcbench generate --novel book.txt --output questions.jsonl
//	lcbench validate --novel book.txt --data_set questions.jsonl --output validated.jsonl
//	lcbench report --novel book.txt --data_set questions.jsonl --results results.jsonl --output report.json
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel-labs/lcbench/internal/cli"
)

func main() {
	c := cli.CLI{}
	ctx := kong.Parse(&c,
		kong.Name("lcbench"),
		kong.Description("lcbench - long-context benchmark harness"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&c)
	if err == nil {
		return
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, exitErr.Error())
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
