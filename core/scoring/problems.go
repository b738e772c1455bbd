package scoring

import (
	"github.com/trezcool/tathmini/core/classroom"
	"github.com/trezcool/tathmini/core/rubric"
)

// ProblemStats counts how many times each rubric option was selected.
type ProblemStats struct {
	Counts  map[rubric.Option]int `json:"counts"`
	Entries int                   `json:"entries"` // score records examined
	Unknown int                   `json:"unknown"` // selections of unknown options
}

// CountProblems tabulates the rubric options selected in every score record of every evaluation.
// The key of Score.OptionMarks identifies the option.
func CountProblems(evals []classroom.Evaluation) ProblemStats {
	stats := ProblemStats{Counts: make(map[rubric.Option]int, len(rubric.All()))}
	for _, opt := range rubric.All() {
		stats.Counts[opt] = 0
	}

	for _, eval := range evals {
		for _, score := range eval.Scores {
			if score == nil {
				continue
			}
			stats.Entries++
			for id, mark := range score.OptionMarks {
				if !mark.Selected {
					continue
				}
				if opt, ok := rubric.Parse(id); ok {
					stats.Counts[opt]++
				} else {
					stats.Unknown++
				}
			}
		}
	}
	return stats
}
