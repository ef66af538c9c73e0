// Package aggregator reduces questions and results into the two heatmap
// views the harness reports on: 1-D position-bin coverage/accuracy over the
// source document, and 2-D depth×context-length accuracy cells. Both
// reductions are pure functions with no I/O and no randomness.
package aggregator

import "github.com/kadirpekel-labs/lcbench/internal/evalresult"

// Span is the minimal shape aggregator needs from a question: its evidence
// token range. Keeping this narrow (rather than depending on the question
// package) lets the aggregator stay a leaf package.
type Span struct {
	StartPos int
	EndPos   int
}

// PositionBin is one slice of the source document's token range.
type PositionBin struct {
	StartPos int
	EndPos   int
	Coverage float64
	Accuracy *float64 // nil means no questions fell in this bin
	Count    int
}

// PositionBins partitions [0, totalTokens) into numBins equal-width bins.
// Coverage is computed purely from question spans (every question
// contributes, regardless of whether it has a scored result). Accuracy is
// the mean score, over questions whose evidence starts in that bin, taken
// from scoreByQuestionIndex — the best available score per question index
// (callers typically pass the most recent successful or failed attempt).
func PositionBins(spans []Span, scoreByQuestionIndex map[int]float64, totalTokens, numBins int) []PositionBin {
	bins := make([]PositionBin, numBins)
	for i := range bins {
		bins[i].StartPos = i * totalTokens / numBins
		bins[i].EndPos = (i + 1) * totalTokens / numBins
	}

	scoreSums := make([]float64, numBins)
	counts := make([]int, numBins)

	for qi, sp := range spans {
		s, e := sp.StartPos, sp.EndPos
		span := e - s
		if span <= 0 {
			continue
		}

		for i := range bins {
			overlap := min(e, bins[i].EndPos) - max(s, bins[i].StartPos)
			if overlap < 0 {
				overlap = 0
			}
			bins[i].Coverage += float64(overlap) / float64(span)
		}

		score, hasScore := scoreByQuestionIndex[qi]
		if !hasScore {
			continue
		}
		for i := range bins {
			if s >= bins[i].StartPos && s < bins[i].EndPos {
				scoreSums[i] += score
				counts[i]++
				break
			}
		}
	}

	total := len(spans)
	for i := range bins {
		if total > 0 {
			bins[i].Coverage /= float64(total)
		}
		if counts[i] > 0 {
			mean := scoreSums[i] / float64(counts[i])
			bins[i].Accuracy = &mean
			bins[i].Count = counts[i]
		}
	}

	return bins
}

// DepthCell is one (context_length, depth_bin) combination of the
// evaluation matrix.
type DepthCell struct {
	ContextLength int
	DepthBin      string
	Accuracy      *float64
	Count         int
}

type cellKey struct {
	contextLength int
	depthBin      string
}

// DepthCells reduces depth-aware results into the 2-D (context_length,
// depth_bin) accuracy matrix. contextLengths and depthBins fix the cell
// ordering and guarantee exactly len(contextLengths)*len(depthBins) cells
// even when some are empty (accuracy nil, count 0).
func DepthCells(results []evalresult.Result, contextLengths []int, depthBins []string) []DepthCell {
	cells := make([]DepthCell, 0, len(contextLengths)*len(depthBins))
	wanted := make(map[cellKey]struct{}, len(contextLengths)*len(depthBins))
	for _, l := range contextLengths {
		for _, b := range depthBins {
			cells = append(cells, DepthCell{ContextLength: l, DepthBin: b})
			wanted[cellKey{l, b}] = struct{}{}
		}
	}

	sums := make(map[cellKey]float64)
	counts := make(map[cellKey]int)

	for _, r := range results {
		if r.DepthBin == "" {
			continue
		}
		key := cellKey{r.ContextLength, r.DepthBin}
		if _, ok := wanted[key]; !ok {
			continue
		}
		sums[key] += r.Score
		counts[key]++
	}

	for i := range cells {
		key := cellKey{cells[i].ContextLength, cells[i].DepthBin}
		if c := counts[key]; c > 0 {
			mean := sums[key] / float64(c)
			cells[i].Accuracy = &mean
			cells[i].Count = c
		}
	}

	return cells
}
