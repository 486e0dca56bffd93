package app_test

import (
	"testing"

	"elevate-assessment-service/internal/app"
	"elevate-assessment-service/internal/domain"
)

func TestSumSelectedWeights(t *testing.T) {
	options := map[string]domain.Option{
		"o1": {ID: "o1", Weight: 5},
		"o2": {ID: "o2", Weight: 20},
		"o3": {ID: "o3", Weight: 40},
	}
	answers := []domain.Answer{
		{QuestionID: "q1", OptionIDs: []string{"o1", "o2"}}, // multi-select sums
		{QuestionID: "q2", OptionIDs: []string{"o3"}},
		{QuestionID: "q3", Text: "free text only"}, // contributes nothing
	}
	if got := app.SumSelectedWeights(answers, options); got != 65 {
		t.Fatalf("expected 65, got %v", got)
	}
}

func TestSumSelectedWeightsNoAnswers(t *testing.T) {
	if got := app.SumSelectedWeights(nil, nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestSumSelectedWeightsNotClamped(t *testing.T) {
	options := map[string]domain.Option{
		"o1": {ID: "o1", Weight: 90},
		"o2": {ID: "o2", Weight: 90},
	}
	answers := []domain.Answer{{QuestionID: "q1", OptionIDs: []string{"o1", "o2"}}}
	if got := app.SumSelectedWeights(answers, options); got != 180 {
		t.Fatalf("raw sum must not be clamped, got %v", got)
	}
}

func TestWeightedAverageScore(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Weight: 2},
		{ID: "q2", Weight: 1},
		{ID: "q3"}, // zero weight counts as 1
	}
	score := 90.0
	answers := []domain.AttemptAnswer{
		{QuestionID: "q1", Value: "60"},
		{QuestionID: "q2", Value: "not a number"}, // scores 0
		{QuestionID: "q3", Value: "30", Score: &score}, // explicit score wins over value
	}
	// (60*2 + 0*1 + 90*1) / 4 = 52.5
	if got := app.WeightedAverageScore(questions, answers); got != 52.5 {
		t.Fatalf("expected 52.5, got %v", got)
	}
}

func TestWeightedAverageScoreClamps(t *testing.T) {
	questions := []domain.Question{{ID: "q1", Weight: 1}}
	if got := app.WeightedAverageScore(questions, []domain.AttemptAnswer{{QuestionID: "q1", Value: "250"}}); got != 100 {
		t.Fatalf("expected clamp to 100, got %v", got)
	}
	if got := app.WeightedAverageScore(questions, []domain.AttemptAnswer{{QuestionID: "q1", Value: "-10"}}); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}

func TestWeightedAverageScoreEmpty(t *testing.T) {
	if got := app.WeightedAverageScore(nil, nil); got != 0 {
		t.Fatalf("expected 0 for no answers, got %v", got)
	}
}
