package advisor

import "context"

// StaticClient returns canned responses. It serves demo setups without an API
// key and keeps service tests deterministic.
type StaticClient struct {
	Stage      StageResult
	Summary    SummaryResult
	StageErr   error
	SummaryErr error
}

// NewStaticClient builds a StaticClient with plausible defaults.
func NewStaticClient() *StaticClient {
	return &StaticClient{
		Stage: StageResult{
			Stage:      "Grow",
			Score:      68.5,
			Rationale:  "Heuristic based on revenue and team size answers",
			Confidence: 0.8,
		},
		Summary: SummaryResult{
			Summary:         "You are in the Grow stage. Focus on systems and talent.",
			Recommendations: []string{"Hire sales ops", "Document SOPs"},
		},
	}
}

func (s *StaticClient) DetermineStage(_ context.Context, _ StageRequest) (StageResult, error) {
	if s.StageErr != nil {
		return StageResult{}, s.StageErr
	}
	return s.Stage, nil
}

func (s *StaticClient) GenerateSummary(_ context.Context, _ string, _ float64, _ map[string]string) (SummaryResult, error) {
	if s.SummaryErr != nil {
		return SummaryResult{}, s.SummaryErr
	}
	return s.Summary, nil
}
