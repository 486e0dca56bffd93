package memory

import (
	"context"
	"sort"
	"sync"

	"elevate-assessment-service/internal/domain"
)

// Store is an in-memory implementation of the service's persistence surface,
// used for tests and demo setups without Postgres.
type Store struct {
	mu             sync.RWMutex
	questionnaires map[string]domain.Questionnaire
	questions      map[string]domain.Question
	options        map[string]domain.Option
	assignments    map[string]domain.Assignment
	assignOrder    []string
	answers        map[string]domain.Answer
	answerIDs      map[string]string // assignmentID|questionID -> answer id
	rules          []domain.StageRule
	attempts       map[string]domain.Attempt
	attemptAnswers map[string]domain.AttemptAnswer
	attemptAnsIDs  map[string]string // attemptID|questionID -> answer id
}

func NewStore() *Store {
	return &Store{
		questionnaires: make(map[string]domain.Questionnaire),
		questions:      make(map[string]domain.Question),
		options:        make(map[string]domain.Option),
		assignments:    make(map[string]domain.Assignment),
		answers:        make(map[string]domain.Answer),
		answerIDs:      make(map[string]string),
		attempts:       make(map[string]domain.Attempt),
		attemptAnswers: make(map[string]domain.AttemptAnswer),
		attemptAnsIDs:  make(map[string]string),
	}
}

// SeedQuestionnaire loads catalog content (questionnaire, questions, options).
func (s *Store) SeedQuestionnaire(q domain.Questionnaire, questions []domain.Question, options []domain.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionnaires[q.ID] = q
	for _, question := range questions {
		s.questions[question.ID] = question
	}
	for _, opt := range options {
		s.options[opt.ID] = opt
	}
}

// SeedRules replaces the stage rule table.
func (s *Store) SeedRules(rules []domain.StageRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append([]domain.StageRule(nil), rules...)
}

func (s *Store) GetAssignment(_ context.Context, id string) (domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	return a, nil
}

func (s *Store) CreateAssignment(_ context.Context, a domain.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
	s.assignOrder = append(s.assignOrder, a.ID)
	return nil
}

func (s *Store) UpdateAssignment(_ context.Context, a domain.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID]; !ok {
		return domain.ErrAssignmentNotFound
	}
	s.assignments[a.ID] = a
	return nil
}

func (s *Store) UpdateAdvisory(_ context.Context, id, aiStage, summary string, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return domain.ErrAssignmentNotFound
	}
	a.AISuggestedStage = aiStage
	a.StageSummary = summary
	a.AIConfidence = &confidence
	s.assignments[id] = a
	return nil
}

func (s *Store) ListAssignmentsByClient(_ context.Context, clientID string) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Assignment
	for i := len(s.assignOrder) - 1; i >= 0; i-- {
		if a := s.assignments[s.assignOrder[i]]; a.ClientID == clientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) GetAnswer(_ context.Context, assignmentID, questionID string) (domain.Answer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.answerIDs[assignmentID+"|"+questionID]
	if !ok {
		return domain.Answer{}, false, nil
	}
	return s.answers[id], true, nil
}

func (s *Store) ListAnswers(_ context.Context, assignmentID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Answer
	for _, ans := range s.answers {
		if ans.AssignmentID == assignmentID {
			out = append(out, ans)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *Store) UpsertAnswer(_ context.Context, ans domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ans.AssignmentID + "|" + ans.QuestionID
	if existingID, ok := s.answerIDs[key]; ok {
		ans.ID = existingID
	} else {
		s.answerIDs[key] = ans.ID
	}
	ans.OptionIDs = append([]string(nil), ans.OptionIDs...)
	s.answers[ans.ID] = ans
	return nil
}

func (s *Store) GetQuestionnaire(_ context.Context, id string) (domain.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questionnaires[id]
	if !ok {
		return domain.Questionnaire{}, domain.ErrQuestionnaireNotFound
	}
	return q, nil
}

func (s *Store) ListQuestions(_ context.Context, questionnaireID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, q := range s.questions {
		if q.QuestionnaireID == questionnaireID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *Store) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) ListOptions(_ context.Context, questionID string) ([]domain.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Option
	for _, opt := range s.options {
		if opt.QuestionID == questionID {
			out = append(out, opt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *Store) GetOption(_ context.Context, id string) (domain.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opt, ok := s.options[id]
	if !ok {
		return domain.Option{}, domain.ErrOptionNotFound
	}
	return opt, nil
}

func (s *Store) RulesForQuestionnaire(_ context.Context, questionnaireID string) ([]domain.StageRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StageRule
	for _, r := range s.rules {
		if r.QuestionnaireID == questionnaireID {
			out = append(out, r)
		}
	}
	sortRulesByPriority(out)
	return out, nil
}

func (s *Store) GlobalRules(ctx context.Context) ([]domain.StageRule, error) {
	return s.RulesForQuestionnaire(ctx, "")
}

func (s *Store) CreateAttempt(_ context.Context, at domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[at.ID] = at
	return nil
}

func (s *Store) GetAttempt(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return at, nil
}

func (s *Store) UpdateAttempt(_ context.Context, at domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[at.ID]; !ok {
		return domain.ErrAttemptNotFound
	}
	s.attempts[at.ID] = at
	return nil
}

func (s *Store) ListAttemptAnswers(_ context.Context, attemptID string) ([]domain.AttemptAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AttemptAnswer
	for _, ans := range s.attemptAnswers {
		if ans.AttemptID == attemptID {
			out = append(out, ans)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *Store) UpsertAttemptAnswer(_ context.Context, ans domain.AttemptAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ans.AttemptID + "|" + ans.QuestionID
	if existingID, ok := s.attemptAnsIDs[key]; ok {
		ans.ID = existingID
	} else {
		s.attemptAnsIDs[key] = ans.ID
	}
	s.attemptAnswers[ans.ID] = ans
	return nil
}

// InTx runs fn directly; the in-memory store has no transactions. Callers
// validate before writing, which keeps failed calls free of partial state.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func sortRulesByPriority(rules []domain.StageRule) {
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
}
