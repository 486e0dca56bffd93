package app

import (
	"context"
	"time"

	"elevate-assessment-service/internal/domain"
)

// AssignmentRepository persists client assignments.
type AssignmentRepository interface {
	GetAssignment(ctx context.Context, id string) (domain.Assignment, error)
	CreateAssignment(ctx context.Context, a domain.Assignment) error
	UpdateAssignment(ctx context.Context, a domain.Assignment) error
	// UpdateAdvisory writes only the AI advisory fields, as a short write
	// separate from the finalize transaction.
	UpdateAdvisory(ctx context.Context, id, aiStage, summary string, confidence float64) error
	ListAssignmentsByClient(ctx context.Context, clientID string) ([]domain.Assignment, error)
}

// AnswerRepository persists captured answers, one per (assignment, question).
type AnswerRepository interface {
	GetAnswer(ctx context.Context, assignmentID, questionID string) (domain.Answer, bool, error)
	ListAnswers(ctx context.Context, assignmentID string) ([]domain.Answer, error)
	// UpsertAnswer creates or updates the answer for its (assignment, question)
	// pair and replaces the selected option set entirely.
	UpsertAnswer(ctx context.Context, ans domain.Answer) error
}

// CatalogRepository reads questionnaire content. The catalog is authored
// elsewhere and is read-only from this service's perspective.
type CatalogRepository interface {
	GetQuestionnaire(ctx context.Context, id string) (domain.Questionnaire, error)
	ListQuestions(ctx context.Context, questionnaireID string) ([]domain.Question, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListOptions(ctx context.Context, questionID string) ([]domain.Option, error)
	GetOption(ctx context.Context, id string) (domain.Option, error)
}

// StageRuleRepository reads stage routing rules, ordered by priority.
type StageRuleRepository interface {
	RulesForQuestionnaire(ctx context.Context, questionnaireID string) ([]domain.StageRule, error)
	GlobalRules(ctx context.Context) ([]domain.StageRule, error)
}

// AttemptRepository persists the legacy self-serve attempt flow.
type AttemptRepository interface {
	CreateAttempt(ctx context.Context, at domain.Attempt) error
	GetAttempt(ctx context.Context, id string) (domain.Attempt, error)
	UpdateAttempt(ctx context.Context, at domain.Attempt) error
	ListAttemptAnswers(ctx context.Context, attemptID string) ([]domain.AttemptAnswer, error)
	UpsertAttemptAnswer(ctx context.Context, ans domain.AttemptAnswer) error
}

// Transactor runs fn as one atomic unit of work. Implementations without real
// transactions may run fn directly; the service validates before writing so a
// failed call leaves no partial state either way.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is the full persistence surface the service needs.
type Store interface {
	AssignmentRepository
	AnswerRepository
	CatalogRepository
	StageRuleRepository
	AttemptRepository
	Transactor
}

// Clock is injected in tests for deterministic timestamps.
type Clock func() time.Time
