package app

import (
	"strconv"

	"elevate-assessment-service/internal/domain"
)

// SumSelectedWeights computes the assessment score: the sum of the point
// weight of every selected option across all answers. Free-text-only answers
// contribute nothing. The raw sum is the score; no normalization or clamping.
func SumSelectedWeights(answers []domain.Answer, options map[string]domain.Option) float64 {
	total := 0.0
	for _, ans := range answers {
		for _, optID := range ans.OptionIDs {
			if opt, ok := options[optID]; ok {
				total += opt.Weight
			}
		}
	}
	return total
}

// WeightedAverageScore is the legacy attempt scorer: the per-question weighted
// average of numeric answers, clamped to [0,100]. It must not be confused with
// SumSelectedWeights; the two paths score different things.
func WeightedAverageScore(questions []domain.Question, answers []domain.AttemptAnswer) float64 {
	weights := make(map[string]float64, len(questions))
	for _, q := range questions {
		w := q.Weight
		if w == 0 {
			w = 1
		}
		weights[q.ID] = w
	}

	totalWeight := 0.0
	weightedScore := 0.0
	for _, ans := range answers {
		w, ok := weights[ans.QuestionID]
		if !ok {
			w = 1
		}
		totalWeight += w

		s := 0.0
		if ans.Score != nil {
			s = *ans.Score
		} else if v, err := strconv.ParseFloat(ans.Value, 64); err == nil {
			s = v
		}
		weightedScore += s * w
	}
	if totalWeight == 0 {
		return 0
	}

	result := weightedScore / totalWeight
	if result < 0 {
		result = 0
	}
	if result > 100 {
		result = 100
	}
	return result
}
