// Package scheduler assigns each question to one or more cells of the
// (context_length, depth_bin) evaluation matrix.
package scheduler

import (
	"fmt"
	"math"
	"sort"
)

// Mode selects the scheduling strategy.
type Mode string

const (
	ModeLegacy  Mode = "legacy"
	ModeFixed   Mode = "fixed"
	ModeUniform Mode = "uniform"
)

// DepthBin names one of the five canonical depth buckets, with its centroid
// used as the built context's target depth.
type DepthBin struct {
	Label    string
	Centroid float64
}

// DepthBins are the five canonical buckets in ascending order.
var DepthBins = []DepthBin{
	{Label: "0%", Centroid: 0.0},
	{Label: "25%", Centroid: 0.25},
	{Label: "50%", Centroid: 0.5},
	{Label: "75%", Centroid: 0.75},
	{Label: "100%", Centroid: 1.0},
}

// Config parameterizes a scheduling run.
type Config struct {
	Mode           Mode
	ContextLengths []int
	FixedDepth     float64 // only used when Mode == ModeFixed
	MaxQuestions   int     // 0 = no cap
}

// Assignment is the scheduler's output: one question tested at one context
// length (and, for depth-aware modes, one target depth).
type Assignment struct {
	QuestionIndex int
	ContextLength int
	TargetDepth   float64 // -1 for legacy mode's "no depth" assignments
	DepthBin      string  // "" for legacy mode
}

// Schedule builds the assignment list for numQuestions questions (indices
// 0..numQuestions). Assignments are returned sorted by
// (context_length, depth_bin centroid, question_index) for reproducibility.
func Schedule(numQuestions int, cfg Config) ([]Assignment, error) {
	if numQuestions <= 0 {
		return nil, fmt.Errorf("scheduler: numQuestions must be positive, got %d", numQuestions)
	}
	if len(cfg.ContextLengths) == 0 {
		return nil, fmt.Errorf("scheduler: at least one context length is required")
	}

	var assignments []Assignment

	switch cfg.Mode {
	case ModeLegacy:
		assignments = scheduleLegacy(numQuestions, cfg)
	case ModeFixed:
		assignments = scheduleFixed(numQuestions, cfg)
	case ModeUniform:
		assignments = scheduleUniform(numQuestions, cfg)
	default:
		return nil, fmt.Errorf("scheduler: unknown mode %q", cfg.Mode)
	}

	sort.SliceStable(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if a.ContextLength != b.ContextLength {
			return a.ContextLength < b.ContextLength
		}
		if a.TargetDepth != b.TargetDepth {
			return a.TargetDepth < b.TargetDepth
		}
		return a.QuestionIndex < b.QuestionIndex
	})

	return assignments, nil
}

func scheduleLegacy(numQuestions int, cfg Config) []Assignment {
	length := cfg.ContextLengths[0]
	out := make([]Assignment, 0, numQuestions)
	for i := 0; i < numQuestions; i++ {
		out = append(out, Assignment{QuestionIndex: i, ContextLength: length, TargetDepth: -1})
	}
	return out
}

func scheduleFixed(numQuestions int, cfg Config) []Assignment {
	bin := nearestBin(cfg.FixedDepth)
	out := make([]Assignment, 0, numQuestions*len(cfg.ContextLengths))
	for _, length := range cfg.ContextLengths {
		for i := 0; i < numQuestions; i++ {
			out = append(out, Assignment{
				QuestionIndex: i,
				ContextLength: length,
				TargetDepth:   cfg.FixedDepth,
				DepthBin:      bin.Label,
			})
		}
	}
	return out
}

// scheduleUniform partitions questions round-robin across the five depth
// bins (giving bin sizes that differ by at most one, deterministically),
// optionally caps the per-bin population to honor MaxQuestions, then
// expands every remaining (question, bin) pair across every context length.
func scheduleUniform(numQuestions int, cfg Config) []Assignment {
	bins := make([][]int, len(DepthBins))
	for i := 0; i < numQuestions; i++ {
		b := i % len(DepthBins)
		bins[b] = append(bins[b], i)
	}

	if cfg.MaxQuestions > 0 && cfg.MaxQuestions < numQuestions {
		bins = capBins(bins, cfg.MaxQuestions)
	}

	out := make([]Assignment, 0, numQuestions*len(cfg.ContextLengths))
	for b, indices := range bins {
		db := DepthBins[b]
		for _, length := range cfg.ContextLengths {
			for _, idx := range indices {
				out = append(out, Assignment{
					QuestionIndex: idx,
					ContextLength: length,
					TargetDepth:   db.Centroid,
					DepthBin:      db.Label,
				})
			}
		}
	}
	return out
}

// capBins reduces the union of the bin indices to maxQuestions while keeping
// per-bin sizes within one of each other, by taking a proportional share
// from each bin in round-robin order.
func capBins(bins [][]int, maxQuestions int) [][]int {
	quota := maxQuestions / len(bins)
	extra := maxQuestions % len(bins)

	out := make([][]int, len(bins))
	for i, indices := range bins {
		take := quota
		if i < extra {
			take++
		}
		if take > len(indices) {
			take = len(indices)
		}
		out[i] = indices[:take]
	}
	return out
}

func nearestBin(depth float64) DepthBin {
	best := DepthBins[0]
	bestDist := math.Abs(depth - best.Centroid)
	for _, b := range DepthBins[1:] {
		d := math.Abs(depth - b.Centroid)
		if d < bestDist {
			best, bestDist = b, d
		}
	}
	return best
}
