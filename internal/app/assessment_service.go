package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"elevate-assessment-service/internal/advisor"
	"elevate-assessment-service/internal/domain"
)

const defaultAdvisorTimeout = 30 * time.Second

// Service contains the assessment use cases: capturing answers, computing the
// score, resolving the target stage and finalizing assignments.
type Service struct {
	store          Store
	rules          StageRuleRepository
	advisor        advisor.Client
	advisorTimeout time.Duration
	feed           *SubmissionFeed
	locks          *keyedMutex
	now            Clock
	newID          func() string
}

func NewService(store Store, rules StageRuleRepository, adv advisor.Client, advisorTimeout time.Duration) *Service {
	return NewServiceWithClock(store, rules, adv, advisorTimeout, time.Now)
}

// NewServiceWithClock is test-only for deterministic timestamps.
func NewServiceWithClock(store Store, rules StageRuleRepository, adv advisor.Client, advisorTimeout time.Duration, now Clock) *Service {
	if rules == nil {
		rules = store
	}
	if advisorTimeout <= 0 {
		advisorTimeout = defaultAdvisorTimeout
	}
	return &Service{
		store:          store,
		rules:          rules,
		advisor:        adv,
		advisorTimeout: advisorTimeout,
		feed:           NewSubmissionFeed(),
		locks:          newKeyedMutex(),
		now:            now,
		newID:          uuid.NewString,
	}
}

// Feed exposes the submission event feed for transports.
func (s *Service) Feed() *SubmissionFeed {
	return s.feed
}

// Assign creates an ASSIGNED assignment of a questionnaire to a client.
func (s *Service) Assign(ctx context.Context, clientID, questionnaireID, stageID string, dueDate *time.Time) (domain.Assignment, error) {
	if _, err := s.store.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return domain.Assignment{}, err
	}
	existing, err := s.store.ListAssignmentsByClient(ctx, clientID)
	if err != nil {
		return domain.Assignment{}, err
	}
	for _, a := range existing {
		if a.QuestionnaireID == questionnaireID {
			return domain.Assignment{}, domain.ErrAlreadyAssigned
		}
	}

	a := domain.Assignment{
		ID:              s.newID(),
		ClientID:        clientID,
		QuestionnaireID: questionnaireID,
		StageID:         stageID,
		Status:          domain.StatusAssigned,
		DueDate:         dueDate,
	}
	if err := s.store.CreateAssignment(ctx, a); err != nil {
		return domain.Assignment{}, err
	}
	return a, nil
}

// ListAssignments returns the client's assignments, newest first.
func (s *Service) ListAssignments(ctx context.Context, clientID string) ([]domain.Assignment, error) {
	return s.store.ListAssignmentsByClient(ctx, clientID)
}

// SaveAnswers upserts one answer per question, replacing any previously
// selected options. With submit set it finalizes the assignment afterwards.
func (s *Service) SaveAnswers(ctx context.Context, assignmentID, callerID string, items []domain.AnswerItem, submit bool) error {
	if submit {
		_, err := s.finalize(ctx, assignmentID, callerID, items)
		return err
	}

	unlock := s.locks.lock(assignmentID)
	defer unlock()

	return s.store.InTx(ctx, func(ctx context.Context) error {
		a, err := s.loadOwned(ctx, assignmentID, callerID)
		if err != nil {
			return err
		}
		if a.Status == domain.StatusSubmitted {
			return domain.ErrAlreadySubmitted
		}
		if err := s.validateItems(ctx, a.QuestionnaireID, items); err != nil {
			return err
		}
		if err := s.writeAnswers(ctx, assignmentID, items); err != nil {
			return err
		}
		if err := a.Start(s.now()); err != nil {
			return err
		}
		return s.store.UpdateAssignment(ctx, a)
	})
}

// Finalize computes the score, resolves the stage and submits the assignment.
// The deterministic outcome is committed first; the AI advisory fields are
// filled in by a separate, timeout-bounded write afterwards.
func (s *Service) Finalize(ctx context.Context, assignmentID, callerID string) (domain.Assignment, error) {
	return s.finalize(ctx, assignmentID, callerID, nil)
}

func (s *Service) finalize(ctx context.Context, assignmentID, callerID string, items []domain.AnswerItem) (domain.Assignment, error) {
	unlock := s.locks.lock(assignmentID)
	defer unlock()

	var (
		snapshot domain.Assignment
		payload  []advisor.AnswerItem
		texts    map[string]string
	)
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		a, err := s.loadOwned(ctx, assignmentID, callerID)
		if err != nil {
			return err
		}
		if a.Status == domain.StatusSubmitted {
			return domain.ErrAlreadySubmitted
		}
		if err := s.validateItems(ctx, a.QuestionnaireID, items); err != nil {
			return err
		}
		if err := s.writeAnswers(ctx, assignmentID, items); err != nil {
			return err
		}

		answers, err := s.store.ListAnswers(ctx, assignmentID)
		if err != nil {
			return err
		}
		options, err := s.selectedOptions(ctx, answers)
		if err != nil {
			return err
		}
		score := SumSelectedWeights(answers, options)

		stage, _, err := resolveStage(ctx, s.rules, a.QuestionnaireID, score)
		if err != nil {
			return err
		}
		// An empty stage means no rule matched: stage undetermined, not an error.
		if err := a.Submit(s.now(), score, stage); err != nil {
			return err
		}
		if err := s.store.UpdateAssignment(ctx, a); err != nil {
			return err
		}

		payload, texts, err = s.advisorPayload(ctx, a.QuestionnaireID, answers)
		if err != nil {
			return err
		}
		snapshot = a
		return nil
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	snapshot = s.advise(ctx, snapshot, payload, texts)

	s.feed.Publish(domain.SubmissionEvent{
		AssignmentID:  snapshot.ID,
		ClientID:      snapshot.ClientID,
		Score:         *snapshot.Score,
		ResolvedStage: snapshot.ResolvedStage,
		SubmittedAt:   *snapshot.SubmittedAt,
	})
	return snapshot, nil
}

// advise runs the two advisor calls outside any transaction, falling back to
// neutral values on failure, and persists the advisory fields in one short write.
func (s *Service) advise(ctx context.Context, a domain.Assignment, payload []advisor.AnswerItem, texts map[string]string) domain.Assignment {
	actx, cancel := context.WithTimeout(ctx, s.advisorTimeout)
	defer cancel()

	stageRes, err := s.advisor.DetermineStage(actx, advisor.StageRequest{
		AssignmentID:    a.ID,
		QuestionnaireID: a.QuestionnaireID,
		Answers:         payload,
		RuleContext:     map[string]string{"version": "v1"},
	})
	if err != nil {
		stageRes = advisor.NeutralStageResult()
	}

	sumRes, err := s.advisor.GenerateSummary(actx, stageRes.Stage, *a.Score, texts)
	if err != nil {
		sumRes = advisor.UnavailableSummaryResult()
	}

	confidence := stageRes.Confidence
	a.AISuggestedStage = stageRes.Stage
	a.StageSummary = sumRes.Summary
	a.AIConfidence = &confidence

	if err := s.store.UpdateAdvisory(ctx, a.ID, a.AISuggestedStage, a.StageSummary, confidence); err != nil {
		log.Printf("persist advisory fields for assignment %s: %v", a.ID, err)
	}
	return a
}

// QuestionDetail pairs a question with its options and the caller's answer.
type QuestionDetail struct {
	Question domain.Question `json:"question"`
	Options  []domain.Option `json:"options"`
	Answer   *domain.Answer  `json:"answer,omitempty"`
}

// AssignmentDetails is the fill-in projection served to clients.
type AssignmentDetails struct {
	Assignment domain.Assignment `json:"assignment"`
	Questions  []QuestionDetail  `json:"questions"`
}

// GetDetails returns the question list with options and any existing answers.
func (s *Service) GetDetails(ctx context.Context, assignmentID, callerID string) (AssignmentDetails, error) {
	a, err := s.loadOwned(ctx, assignmentID, callerID)
	if err != nil {
		return AssignmentDetails{}, err
	}

	questions, err := s.store.ListQuestions(ctx, a.QuestionnaireID)
	if err != nil {
		return AssignmentDetails{}, err
	}

	details := AssignmentDetails{Assignment: a, Questions: make([]QuestionDetail, 0, len(questions))}
	for _, q := range questions {
		opts, err := s.store.ListOptions(ctx, q.ID)
		if err != nil {
			return AssignmentDetails{}, err
		}
		qd := QuestionDetail{Question: q, Options: opts}
		if ans, ok, err := s.store.GetAnswer(ctx, assignmentID, q.ID); err != nil {
			return AssignmentDetails{}, err
		} else if ok {
			existing := ans
			qd.Answer = &existing
		}
		details.Questions = append(details.Questions, qd)
	}
	return details, nil
}

func (s *Service) loadOwned(ctx context.Context, assignmentID, callerID string) (domain.Assignment, error) {
	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if a.ClientID != callerID {
		return domain.Assignment{}, domain.ErrAccessDenied
	}
	return a, nil
}

// validateItems resolves every referenced question and option before anything
// is written, so a bad reference aborts the call with no partial state.
func (s *Service) validateItems(ctx context.Context, questionnaireID string, items []domain.AnswerItem) error {
	for _, item := range items {
		q, err := s.store.GetQuestion(ctx, item.QuestionID)
		if err != nil {
			return err
		}
		if q.QuestionnaireID != questionnaireID {
			return domain.ErrQuestionNotFound
		}
		for _, optID := range item.OptionIDs {
			opt, err := s.store.GetOption(ctx, optID)
			if err != nil {
				return err
			}
			if opt.QuestionID != q.ID {
				return domain.ErrOptionNotFound
			}
		}
	}
	return nil
}

func (s *Service) writeAnswers(ctx context.Context, assignmentID string, items []domain.AnswerItem) error {
	for _, item := range items {
		ans := domain.Answer{
			ID:           s.newID(),
			AssignmentID: assignmentID,
			QuestionID:   item.QuestionID,
			Text:         item.Text,
			OptionIDs:    item.OptionIDs,
		}
		if err := s.store.UpsertAnswer(ctx, ans); err != nil {
			return err
		}
	}
	return nil
}

// selectedOptions loads every option referenced by the answers, keyed by id.
func (s *Service) selectedOptions(ctx context.Context, answers []domain.Answer) (map[string]domain.Option, error) {
	options := make(map[string]domain.Option)
	for _, ans := range answers {
		for _, optID := range ans.OptionIDs {
			if _, ok := options[optID]; ok {
				continue
			}
			opt, err := s.store.GetOption(ctx, optID)
			if err != nil {
				return nil, err
			}
			options[optID] = opt
		}
	}
	return options, nil
}

// advisorPayload builds the (question, answer) tuples in question order;
// unanswered questions are included with empty values.
func (s *Service) advisorPayload(ctx context.Context, questionnaireID string, answers []domain.Answer) ([]advisor.AnswerItem, map[string]string, error) {
	questions, err := s.store.ListQuestions(ctx, questionnaireID)
	if err != nil {
		return nil, nil, err
	}

	byQuestion := make(map[string]domain.Answer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}

	items := make([]advisor.AnswerItem, 0, len(questions))
	texts := make(map[string]string)
	for _, q := range questions {
		item := advisor.AnswerItem{QuestionID: q.ID}
		if ans, ok := byQuestion[q.ID]; ok {
			item.AnswerText = ans.Text
			item.OptionIDs = ans.OptionIDs
			if ans.Text != "" {
				texts[q.ID] = ans.Text
			}
		}
		items = append(items, item)
	}
	return items, texts, nil
}
