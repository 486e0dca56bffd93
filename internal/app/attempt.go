package app

import (
	"context"

	"elevate-assessment-service/internal/domain"
)

// AttemptAnswerItem is the save payload of the legacy attempt flow.
type AttemptAnswerItem struct {
	QuestionID string   `json:"questionId"`
	Value      string   `json:"value"`
	Score      *float64 `json:"score,omitempty"`
}

// StartAttempt opens a self-serve attempt at a questionnaire. Attempts are
// the older flow: no admin assignment, weighted-average scoring.
func (s *Service) StartAttempt(ctx context.Context, clientID, questionnaireID string) (domain.Attempt, error) {
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return domain.Attempt{}, err
	}
	at := domain.Attempt{
		ID:              s.newID(),
		ClientID:        clientID,
		QuestionnaireID: questionnaireID,
		StartedAt:       s.now(),
	}
	if err := s.store.CreateAttempt(ctx, at); err != nil {
		return domain.Attempt{}, err
	}
	return at, nil
}

// SaveAttemptAnswers upserts one answer per question, idempotently.
func (s *Service) SaveAttemptAnswers(ctx context.Context, attemptID, callerID string, items []AttemptAnswerItem) error {
	unlock := s.locks.lock(attemptID)
	defer unlock()

	return s.store.InTx(ctx, func(ctx context.Context) error {
		at, err := s.loadOwnedAttempt(ctx, attemptID, callerID)
		if err != nil {
			return err
		}
		if at.CompletedAt != nil {
			return domain.ErrAlreadySubmitted
		}
		for _, item := range items {
			q, err := s.store.GetQuestion(ctx, item.QuestionID)
			if err != nil {
				return err
			}
			if q.QuestionnaireID != at.QuestionnaireID {
				return domain.ErrQuestionNotFound
			}
		}
		for _, item := range items {
			ans := domain.AttemptAnswer{
				ID:         s.newID(),
				AttemptID:  attemptID,
				QuestionID: item.QuestionID,
				Value:      item.Value,
				Score:      item.Score,
			}
			if err := s.store.UpsertAttemptAnswer(ctx, ans); err != nil {
				return err
			}
		}
		return nil
	})
}

// FinalizeAttempt computes the weighted-average score, resolves the stage and
// closes the attempt. Attempts never consult the AI advisor.
func (s *Service) FinalizeAttempt(ctx context.Context, attemptID, callerID string) (domain.Attempt, error) {
	unlock := s.locks.lock(attemptID)
	defer unlock()

	var snapshot domain.Attempt
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		at, err := s.loadOwnedAttempt(ctx, attemptID, callerID)
		if err != nil {
			return err
		}
		if at.CompletedAt != nil {
			return domain.ErrAlreadySubmitted
		}

		questions, err := s.store.ListQuestions(ctx, at.QuestionnaireID)
		if err != nil {
			return err
		}
		answers, err := s.store.ListAttemptAnswers(ctx, attemptID)
		if err != nil {
			return err
		}

		total := WeightedAverageScore(questions, answers)
		stage, _, err := resolveStage(ctx, s.rules, at.QuestionnaireID, total)
		if err != nil {
			return err
		}

		now := s.now()
		at.CompletedAt = &now
		at.TotalScore = &total
		at.RecommendedStage = stage
		if err := s.store.UpdateAttempt(ctx, at); err != nil {
			return err
		}
		snapshot = at
		return nil
	})
	if err != nil {
		return domain.Attempt{}, err
	}
	return snapshot, nil
}

func (s *Service) loadOwnedAttempt(ctx context.Context, attemptID, callerID string) (domain.Attempt, error) {
	at, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if at.ClientID != callerID {
		return domain.Attempt{}, domain.ErrAccessDenied
	}
	return at, nil
}
