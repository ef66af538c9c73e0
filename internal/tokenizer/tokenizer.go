// Package tokenizer provides the deterministic text<->token-id encoding
// that anchors question positions in the source document, and the
// boundary-aware trimming used when building test contexts.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding pinned for this benchmark. All question
// generation and evaluation must use the same encoding id, or evidence token
// positions become meaningless across runs.
const DefaultEncoding = "cl100k_base"

// maxBoundaryScan bounds how far FindBoundary looks before giving up and
// returning the hard cutoff, per the tokenizer boundary-search contract.
const maxBoundaryScan = 100

// sentenceTerminators are the single run terminators (Latin and CJK) that
// close a sentence when followed by whitespace or a newline.
var sentenceTerminators = []string{".", "!", "?", "。", "！", "？"}

// Direction controls which way FindBoundary scans from the target index.
type Direction int

const (
	Forward Direction = iota
	Backward
)

var (
	cacheMu sync.RWMutex
	cache   = map[string]*tiktoken.Tiktoken{}
)

// Tokenizer wraps a pinned tiktoken encoding. It is safe for concurrent use:
// the underlying *tiktoken.Tiktoken has no mutable state touched by Encode/Decode.
type Tokenizer struct {
	encoding     *tiktoken.Tiktoken
	encodingName string
}

// New returns a Tokenizer for the given encoding id, caching encodings so
// repeated construction (one per pipeline worker, say) is cheap.
func New(encodingName string) (*Tokenizer, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}

	cacheMu.RLock()
	enc, ok := cache[encodingName]
	cacheMu.RUnlock()
	if ok {
		return &Tokenizer{encoding: enc, encodingName: encodingName}, nil
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: unknown encoding %q: %w", encodingName, err)
	}

	cacheMu.Lock()
	cache[encodingName] = enc
	cacheMu.Unlock()

	return &Tokenizer{encoding: enc, encodingName: encodingName}, nil
}

// EncodingID reports the pinned encoding identifier, persisted in
// QuestionSet metadata so readers can detect a mismatched tokenizer.
func (t *Tokenizer) EncodingID() string {
	return t.encodingName
}

// Encode converts text to its token id sequence.
func (t *Tokenizer) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

// Decode converts a token id sequence back to text. decode(encode(s)) == s
// for any valid UTF-8 s (see tokenizer_test.go's round-trip property).
func (t *Tokenizer) Decode(tokens []int) string {
	return t.encoding.Decode(tokens)
}

// Count returns the number of tokens text encodes to.
func (t *Tokenizer) Count(text string) int {
	return len(t.Encode(text))
}

// FindBoundary scans outward from targetIndex in the given direction for the
// nearest sentence terminator followed by whitespace/newline, or a paragraph
// break (double newline). If none is found within maxBoundaryScan tokens, it
// returns the hard cutoff targetIndex unchanged.
func (t *Tokenizer) FindBoundary(tokens []int, targetIndex int, dir Direction) int {
	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex > len(tokens) {
		targetIndex = len(tokens)
	}

	limit := maxBoundaryScan
	if dir == Forward {
		for i := targetIndex; i < len(tokens) && i-targetIndex <= limit; i++ {
			if t.isBoundaryAfter(tokens, i) {
				return min(i+1, len(tokens))
			}
		}
	} else {
		for i := targetIndex; i >= 0 && targetIndex-i <= limit; i-- {
			if i > 0 && t.isBoundaryAfter(tokens, i-1) {
				return i
			}
		}
	}
	return targetIndex
}

// isBoundaryAfter reports whether a sentence or paragraph boundary falls
// immediately after tokens[i]. The terminator must lie inside tokens[i]; it
// decodes a small window starting at i so that the whitespace after it can be
// seen, since punctuation and trailing whitespace frequently live in separate
// BPE tokens.
func (t *Tokenizer) isBoundaryAfter(tokens []int, i int) bool {
	if i < 0 || i >= len(tokens) {
		return false
	}
	end := min(i+3, len(tokens))
	window := t.Decode(tokens[i:end])
	if window == "" {
		return false
	}

	cur := len(t.Decode(tokens[i : i+1]))

	// Paragraph break: a double newline inside tokens[i] or straddling its end.
	if strings.Contains(window[:min(cur+1, len(window))], "\n\n") {
		return true
	}

	for _, term := range sentenceTerminators {
		idx := strings.LastIndex(window[:cur], term)
		if idx < 0 {
			continue
		}
		rest := window[idx+len(term):]
		if rest == "" {
			// Nothing follows the terminator (tokens[i] ends the input).
			continue
		}
		r := []rune(rest)[0]
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			return true
		}
	}
	return false
}
