package evalresult

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Metadata is the optional leading line of a result JSONL file, recording
// the run configuration that produced the rows beneath it.
type Metadata struct {
	RunID           string   `json:"run_id"`
	TestedAt        string   `json:"tested_at"`
	ModelName       string   `json:"model_name"`
	NovelPath       string   `json:"novel_path"`
	QuestionSetPath string   `json:"question_set_path"`
	ContextLength   int      `json:"context_length,omitempty"`
	ContextLengths  []int    `json:"context_lengths,omitempty"`
	DepthMode       string   `json:"depth_mode"`
	DepthBins       []string `json:"depth_bins,omitempty"`
	PaddingSize     int      `json:"padding_size"`
	TestMode        string   `json:"test_mode,omitempty"`
}

// NewMetadata stamps a fresh run identity and timestamp onto m, so callers
// only need to fill in the run-configuration fields.
func NewMetadata(m Metadata) Metadata {
	m.RunID = uuid.NewString()
	m.TestedAt = time.Now().UTC().Format(time.RFC3339)
	return m
}

// WriteAll serializes an optional metadata header followed by one line per
// result to w.
func WriteAll(w io.Writer, meta *Metadata, results []Result) error {
	enc := json.NewEncoder(w)
	if meta != nil {
		if err := enc.Encode(struct {
			Metadata Metadata `json:"metadata"`
		}{*meta}); err != nil {
			return fmt.Errorf("evalresult: write metadata: %w", err)
		}
	}
	for i, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("evalresult: write result %d: %w", i, err)
		}
	}
	return nil
}

// rawResultLine disambiguates a metadata line from a result line: a
// "metadata" object with no "parsing_status" field is a header, not a row.
type rawResultLine struct {
	Metadata      *Metadata `json:"metadata"`
	ParsingStatus *string   `json:"parsing_status"`
}

// ReadAll parses a prior result JSONL file for recovery, returning its
// metadata header (nil if absent) and every Result row.
func ReadAll(r io.Reader) (*Metadata, []Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var meta *Metadata
	var results []Result
	first := true

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if first {
			first = false
			var raw rawResultLine
			if err := json.Unmarshal(line, &raw); err == nil && raw.ParsingStatus == nil && raw.Metadata != nil {
				m := *raw.Metadata
				meta = &m
				continue
			}
		}

		var res Result
		if err := json.Unmarshal(line, &res); err != nil {
			return nil, nil, fmt.Errorf("evalresult: parse result line: %w", err)
		}
		results = append(results, res)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("evalresult: scan failed: %w", err)
	}
	return meta, results, nil
}
