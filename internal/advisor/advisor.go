// Package advisor defines the external AI stage classifier contract. The
// classifier is best-effort: scoring and rule-based stage resolution never
// depend on it, and callers fall back to Neutral values when it is down.
package advisor

import "context"

// AnswerItem is one (question, answer) tuple sent to the classifier.
type AnswerItem struct {
	QuestionID string   `json:"questionId"`
	AnswerText string   `json:"answerText,omitempty"`
	OptionIDs  []string `json:"optionIds,omitempty"`
}

// StageRequest carries everything the classifier needs to propose a stage.
type StageRequest struct {
	AssignmentID    string            `json:"assignmentId"`
	QuestionnaireID string            `json:"questionnaireId"`
	Answers         []AnswerItem      `json:"answers"`
	RuleContext     map[string]string `json:"ruleContext,omitempty"`
}

// StageResult is the classifier's independent stage proposal. Score is the
// classifier's own estimate and never overwrites the computed score.
type StageResult struct {
	Stage      string  `json:"stage"`
	Score      float64 `json:"score"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// SummaryResult is the narrative produced after a stage is resolved.
type SummaryResult struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// Client is the outbound contract for the AI stage advisor.
type Client interface {
	DetermineStage(ctx context.Context, req StageRequest) (StageResult, error)
	GenerateSummary(ctx context.Context, stage string, score float64, answers map[string]string) (SummaryResult, error)
}

const (
	// NeutralStage is persisted as the AI suggestion when the advisor is unreachable.
	NeutralStage = "Grow"
	// UnavailableRationale marks advisory fields produced by the fallback path.
	UnavailableRationale = "AI unavailable - fallback applied"
	// UnavailableSummary is shown to clients until a summary can be generated.
	UnavailableSummary = "AI temporarily unavailable. We will generate your consultation summary shortly."
)

// NeutralStageResult is the zero-confidence fallback used when DetermineStage fails.
func NeutralStageResult() StageResult {
	return StageResult{Stage: NeutralStage, Rationale: UnavailableRationale}
}

// UnavailableSummaryResult is the fallback used when GenerateSummary fails.
func UnavailableSummaryResult() SummaryResult {
	return SummaryResult{Summary: UnavailableSummary}
}
