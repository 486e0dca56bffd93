package domain

import "time"

// QuestionType distinguishes how a question is answered and rendered.
type QuestionType string

const (
	QuestionScale QuestionType = "SCALE"
	QuestionMCQ   QuestionType = "MCQ"
	QuestionText  QuestionType = "TEXT"
)

// Questionnaire is a named, versioned container of questions.
type Questionnaire struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Question belongs to exactly one questionnaire. Weight only feeds the
// legacy attempt scorer; option weights drive the main score.
type Question struct {
	ID              string       `json:"id"`
	QuestionnaireID string       `json:"questionnaireId"`
	SegmentID       string       `json:"segmentId,omitempty"`
	Text            string       `json:"text"`
	Type            QuestionType `json:"type"`
	Weight          float64      `json:"weight"`
	OrderIndex      int          `json:"orderIndex"`
}

// Option is one selectable choice of a question. Weight is the number of
// points the option contributes to the total score when selected.
type Option struct {
	ID         string  `json:"id"`
	QuestionID string  `json:"questionId"`
	Label      string  `json:"label"`
	Value      string  `json:"value"`
	OrderIndex int     `json:"orderIndex"`
	Weight     float64 `json:"weight"`
}

// Assignment joins one client to a questionnaire bound to a curriculum stage.
// Score, ResolvedStage, StageSummary and the AI fields stay nil/empty until
// submission and are written exactly once.
type Assignment struct {
	ID              string     `json:"id"`
	ClientID        string     `json:"clientId"`
	QuestionnaireID string     `json:"questionnaireId"`
	StageID         string     `json:"stageId"`
	Status          Status     `json:"status"`
	DueDate         *time.Time `json:"dueDate,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`

	Score            *float64 `json:"score,omitempty"`
	ResolvedStage    string   `json:"resolvedStage,omitempty"`
	AISuggestedStage string   `json:"aiSuggestedStage,omitempty"`
	StageSummary     string   `json:"stageSummary,omitempty"`
	AIConfidence     *float64 `json:"aiConfidence,omitempty"`
}

// Answer holds one client's answer to one question of an assignment.
// At most one Answer exists per (assignment, question) pair.
type Answer struct {
	ID           string   `json:"id"`
	AssignmentID string   `json:"assignmentId"`
	QuestionID   string   `json:"questionId"`
	Text         string   `json:"text,omitempty"`
	OptionIDs    []string `json:"optionIds,omitempty"`
}

// AnswerItem is the save payload for a single question.
type AnswerItem struct {
	QuestionID string   `json:"questionId"`
	Text       string   `json:"answerText,omitempty"`
	OptionIDs  []string `json:"optionIds,omitempty"`
}

// StageRule maps a closed score range to a target stage. An empty
// QuestionnaireID marks a global (fallback) rule. Lower priority wins.
type StageRule struct {
	ID              string  `json:"id"`
	QuestionnaireID string  `json:"questionnaireId,omitempty"`
	MinScore        float64 `json:"minScore"`
	MaxScore        float64 `json:"maxScore"`
	TargetStage     string  `json:"targetStage"`
	Priority        int     `json:"priority"`
}

// Contains reports whether score falls inside the rule's closed range.
func (r StageRule) Contains(score float64) bool {
	return score >= r.MinScore && score <= r.MaxScore
}

// Attempt is the older self-serve assessment flow: no admin assignment,
// per-question numeric answers, weighted-average scoring.
type Attempt struct {
	ID               string     `json:"id"`
	ClientID         string     `json:"clientId"`
	QuestionnaireID  string     `json:"questionnaireId"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	TotalScore       *float64   `json:"totalScore,omitempty"`
	RecommendedStage string     `json:"recommendedStage,omitempty"`
}

// AttemptAnswer is one numeric/free-form answer inside an attempt.
type AttemptAnswer struct {
	ID         string   `json:"id"`
	AttemptID  string   `json:"attemptId"`
	QuestionID string   `json:"questionId"`
	Value      string   `json:"value"`
	Score      *float64 `json:"score,omitempty"`
}

// SubmissionEvent is broadcast when an assignment is finalized.
type SubmissionEvent struct {
	AssignmentID  string    `json:"assignmentId"`
	ClientID      string    `json:"clientId"`
	Score         float64   `json:"score"`
	ResolvedStage string    `json:"resolvedStage"`
	SubmittedAt   time.Time `json:"submittedAt"`
}
