package question

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// LoadStats reports how many lines were skipped during a Load, so callers
// can surface a count of skipped lines without failing the whole load on a
// single malformed line.
type LoadStats struct {
	TotalLines   int
	SkippedLines int
}

// rawLine is parsed generically first so we can disambiguate a metadata line
// from a question line: a "position" field present means it's a question,
// regardless of what else the line has.
type rawLine struct {
	Metadata     *Metadata `json:"metadata"`
	NovelSummary *string   `json:"novel_summary"`
	Position     *Position `json:"position"`
}

// Load reads a QuestionSet from JSONL. The first line is treated as metadata
// only if it looks like metadata (a "metadata" object or a "novel_summary"
// field) and does NOT carry a "position" field; otherwise every line
// (including the first) is parsed as a Question. totalTokens bounds
// position.end_pos when > 0; pass 0 if the source length isn't known yet.
func Load(r io.Reader, totalTokens int) (QuestionSet, LoadStats, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var set QuestionSet
	var stats LoadStats
	first := true

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		stats.TotalLines++

		if first {
			first = false
			var raw rawLine
			if err := json.Unmarshal(line, &raw); err == nil && raw.Position == nil &&
				(raw.Metadata != nil || raw.NovelSummary != nil) {
				if raw.Metadata != nil {
					set.Metadata = *raw.Metadata
				}
				if raw.NovelSummary != nil {
					set.Metadata.NovelSummary = *raw.NovelSummary
				}
				continue
			}
		}

		var q Question
		if err := json.Unmarshal(line, &q); err != nil {
			slog.Warn("question: skipping malformed line", "error", err)
			stats.SkippedLines++
			continue
		}
		if err := Validate(q, totalTokens); err != nil {
			slog.Warn("question: skipping invalid question", "error", err)
			stats.SkippedLines++
			continue
		}

		set.Questions = append(set.Questions, q)
	}

	if err := scanner.Err(); err != nil {
		return set, stats, fmt.Errorf("question: scan failed: %w", err)
	}

	return set, stats, nil
}

// Write serializes a QuestionSet back to JSONL: an optional metadata line
// followed by one line per question.
func Write(w io.Writer, set QuestionSet) error {
	enc := json.NewEncoder(w)

	if set.Metadata.SourcePath != "" || set.Metadata.NovelSummary != "" || set.Metadata.EncodingID != "" {
		if err := enc.Encode(struct {
			Metadata Metadata `json:"metadata"`
		}{set.Metadata}); err != nil {
			return fmt.Errorf("question: write metadata: %w", err)
		}
	}

	for i, q := range set.Questions {
		if err := enc.Encode(q); err != nil {
			return fmt.Errorf("question: write question %d: %w", i, err)
		}
	}
	return nil
}
