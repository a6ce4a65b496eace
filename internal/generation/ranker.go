// Package generation runs the Best-of-N question generation pipeline.
package generation

import (
	"fmt"
	"sort"

	"quiz-agent-service/internal/domain"
)

// Candidate is a generated question and its critique.
type Candidate struct {
	Question domain.Question
	Score    float64
	Critique domain.Critique
}

// SelectTop sorts candidates by score, highest first, keeping generation order
// on ties, and returns the first want of them together with how many of those
// score below floor. The input slice is left untouched.
func SelectTop(candidates []Candidate, want int, floor float64) ([]Candidate, int) {
	if want <= 0 || len(candidates) == 0 {
		return nil, 0
	}
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if want < len(ranked) {
		ranked = ranked[:want]
	}
	below := 0
	for _, c := range ranked {
		if c.Score < floor {
			below++
		}
	}
	return ranked, below
}

// Select is SelectTop over parallel question and score slices.
func Select(questions []domain.Question, scores []float64, want int, floor float64) ([]domain.Question, int, error) {
	if len(questions) != len(scores) {
		return nil, 0, fmt.Errorf("%w: %d questions but %d scores", domain.ErrInvalidArgument, len(questions), len(scores))
	}
	candidates := make([]Candidate, len(questions))
	for i := range questions {
		candidates[i] = Candidate{Question: questions[i], Score: scores[i]}
	}
	top, below := SelectTop(candidates, want, floor)
	out := make([]domain.Question, len(top))
	for i, c := range top {
		out[i] = c.Question
	}
	return out, below, nil
}
