package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"elevate-assessment-service/internal/domain"
)

// Store is the Postgres implementation of the service's persistence surface.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type txKey struct{}

// InTx runs fn inside a single transaction. Nested calls reuse the outer
// transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

const assignmentColumns = `id, client_id, questionnaire_id, stage_id, status, due_date, started_at,
	submitted_at, score, resolved_stage, ai_suggested_stage, stage_summary, ai_confidence`

// GetAssignment loads one assignment. Inside a transaction the row is locked,
// serializing concurrent saves on the same assignment at the database level.
func (s *Store) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id=$1`
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		query += ` FOR UPDATE`
	}
	var a domain.Assignment
	err := s.q(ctx).QueryRow(ctx, query, id).Scan(
		&a.ID, &a.ClientID, &a.QuestionnaireID, &a.StageID, &a.Status, &a.DueDate, &a.StartedAt,
		&a.SubmittedAt, &a.Score, &a.ResolvedStage, &a.AISuggestedStage, &a.StageSummary, &a.AIConfidence,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("load assignment: %w", err)
	}
	return a, nil
}

func (s *Store) CreateAssignment(ctx context.Context, a domain.Assignment) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO assignments (id, client_id, questionnaire_id, stage_id, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ClientID, a.QuestionnaireID, a.StageID, a.Status, a.DueDate)
	if err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a domain.Assignment) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE assignments
		SET status=$2, started_at=$3, submitted_at=$4, score=$5, resolved_stage=$6
		WHERE id=$1`,
		a.ID, a.Status, a.StartedAt, a.SubmittedAt, a.Score, a.ResolvedStage)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

func (s *Store) UpdateAdvisory(ctx context.Context, id, aiStage, summary string, confidence float64) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE assignments
		SET ai_suggested_stage=$2, stage_summary=$3, ai_confidence=$4
		WHERE id=$1`,
		id, aiStage, summary, confidence)
	if err != nil {
		return fmt.Errorf("update advisory fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

func (s *Store) ListAssignmentsByClient(ctx context.Context, clientID string) ([]domain.Assignment, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments WHERE client_id=$1 ORDER BY created_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(
			&a.ID, &a.ClientID, &a.QuestionnaireID, &a.StageID, &a.Status, &a.DueDate, &a.StartedAt,
			&a.SubmittedAt, &a.Score, &a.ResolvedStage, &a.AISuggestedStage, &a.StageSummary, &a.AIConfidence,
		); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAnswer(ctx context.Context, assignmentID, questionID string) (domain.Answer, bool, error) {
	var ans domain.Answer
	err := s.q(ctx).QueryRow(ctx, `
		SELECT a.id, a.assignment_id, a.question_id, a.answer_text,
		       COALESCE(array_agg(ao.option_id) FILTER (WHERE ao.option_id IS NOT NULL), '{}')
		FROM answers a
		LEFT JOIN answer_options ao ON ao.answer_id = a.id
		WHERE a.assignment_id=$1 AND a.question_id=$2
		GROUP BY a.id`, assignmentID, questionID).
		Scan(&ans.ID, &ans.AssignmentID, &ans.QuestionID, &ans.Text, &ans.OptionIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Answer{}, false, nil
	}
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("load answer: %w", err)
	}
	return ans, true, nil
}

func (s *Store) ListAnswers(ctx context.Context, assignmentID string) ([]domain.Answer, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT a.id, a.assignment_id, a.question_id, a.answer_text,
		       COALESCE(array_agg(ao.option_id) FILTER (WHERE ao.option_id IS NOT NULL), '{}')
		FROM answers a
		LEFT JOIN answer_options ao ON ao.answer_id = a.id
		WHERE a.assignment_id=$1
		GROUP BY a.id
		ORDER BY a.question_id`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var ans domain.Answer
		if err := rows.Scan(&ans.ID, &ans.AssignmentID, &ans.QuestionID, &ans.Text, &ans.OptionIDs); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, ans)
	}
	return out, rows.Err()
}

// UpsertAnswer keeps one answer per question via the unique
// (assignment_id, question_id) index and fully replaces the option links.
func (s *Store) UpsertAnswer(ctx context.Context, ans domain.Answer) error {
	q := s.q(ctx)

	var answerID string
	err := q.QueryRow(ctx, `
		INSERT INTO answers (id, assignment_id, question_id, answer_text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (assignment_id, question_id) DO UPDATE SET answer_text=EXCLUDED.answer_text
		RETURNING id`,
		ans.ID, ans.AssignmentID, ans.QuestionID, ans.Text).Scan(&answerID)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}

	if _, err := q.Exec(ctx, `DELETE FROM answer_options WHERE answer_id=$1`, answerID); err != nil {
		return fmt.Errorf("clear answer options: %w", err)
	}
	for _, optID := range ans.OptionIDs {
		if _, err := q.Exec(ctx, `
			INSERT INTO answer_options (answer_id, option_id) VALUES ($1, $2)`,
			answerID, optID); err != nil {
			return fmt.Errorf("link answer option: %w", err)
		}
	}
	return nil
}

func (s *Store) GetQuestionnaire(ctx context.Context, id string) (domain.Questionnaire, error) {
	var q domain.Questionnaire
	err := s.q(ctx).QueryRow(ctx,
		`SELECT id, name, version FROM questionnaires WHERE id=$1`, id).
		Scan(&q.ID, &q.Name, &q.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Questionnaire{}, domain.ErrQuestionnaireNotFound
	}
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load questionnaire: %w", err)
	}
	return q, nil
}

func (s *Store) ListQuestions(ctx context.Context, questionnaireID string) ([]domain.Question, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT id, questionnaire_id, COALESCE(segment_id, ''), text, type, weight, order_index
		FROM questions WHERE questionnaire_id=$1 ORDER BY order_index, id`, questionnaireID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.QuestionnaireID, &q.SegmentID, &q.Text, &q.Type, &q.Weight, &q.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var q domain.Question
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, questionnaire_id, COALESCE(segment_id, ''), text, type, weight, order_index
		FROM questions WHERE id=$1`, id).
		Scan(&q.ID, &q.QuestionnaireID, &q.SegmentID, &q.Text, &q.Type, &q.Weight, &q.OrderIndex)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (s *Store) ListOptions(ctx context.Context, questionID string) ([]domain.Option, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT id, question_id, label, value, order_index, weight
		FROM question_options WHERE question_id=$1 ORDER BY order_index, id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	var out []domain.Option
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Label, &o.Value, &o.OrderIndex, &o.Weight); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) GetOption(ctx context.Context, id string) (domain.Option, error) {
	var o domain.Option
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, question_id, label, value, order_index, weight
		FROM question_options WHERE id=$1`, id).
		Scan(&o.ID, &o.QuestionID, &o.Label, &o.Value, &o.OrderIndex, &o.Weight)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Option{}, domain.ErrOptionNotFound
	}
	if err != nil {
		return domain.Option{}, fmt.Errorf("load option: %w", err)
	}
	return o, nil
}

func (s *Store) RulesForQuestionnaire(ctx context.Context, questionnaireID string) ([]domain.StageRule, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT id, COALESCE(questionnaire_id, ''), min_score, max_score, target_stage, priority
		FROM stage_rules WHERE questionnaire_id=$1 ORDER BY priority, id`, questionnaireID)
	if err != nil {
		return nil, fmt.Errorf("list stage rules: %w", err)
	}
	return scanRules(rows)
}

func (s *Store) GlobalRules(ctx context.Context) ([]domain.StageRule, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT id, COALESCE(questionnaire_id, ''), min_score, max_score, target_stage, priority
		FROM stage_rules WHERE questionnaire_id IS NULL ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("list global stage rules: %w", err)
	}
	return scanRules(rows)
}

func scanRules(rows pgx.Rows) ([]domain.StageRule, error) {
	defer rows.Close()
	var out []domain.StageRule
	for rows.Next() {
		var r domain.StageRule
		if err := rows.Scan(&r.ID, &r.QuestionnaireID, &r.MinScore, &r.MaxScore, &r.TargetStage, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan stage rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CreateAttempt(ctx context.Context, at domain.Attempt) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO attempts (id, client_id, questionnaire_id, started_at)
		VALUES ($1, $2, $3, $4)`,
		at.ID, at.ClientID, at.QuestionnaireID, at.StartedAt)
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, id string) (domain.Attempt, error) {
	query := `
		SELECT id, client_id, questionnaire_id, started_at, completed_at, total_score, recommended_stage
		FROM attempts WHERE id=$1`
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		query += ` FOR UPDATE`
	}
	var at domain.Attempt
	err := s.q(ctx).QueryRow(ctx, query, id).
		Scan(&at.ID, &at.ClientID, &at.QuestionnaireID, &at.StartedAt, &at.CompletedAt, &at.TotalScore, &at.RecommendedStage)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	return at, nil
}

func (s *Store) UpdateAttempt(ctx context.Context, at domain.Attempt) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE attempts SET completed_at=$2, total_score=$3, recommended_stage=$4 WHERE id=$1`,
		at.ID, at.CompletedAt, at.TotalScore, at.RecommendedStage)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *Store) ListAttemptAnswers(ctx context.Context, attemptID string) ([]domain.AttemptAnswer, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT id, attempt_id, question_id, value, score
		FROM attempt_answers WHERE attempt_id=$1 ORDER BY question_id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list attempt answers: %w", err)
	}
	defer rows.Close()

	var out []domain.AttemptAnswer
	for rows.Next() {
		var ans domain.AttemptAnswer
		if err := rows.Scan(&ans.ID, &ans.AttemptID, &ans.QuestionID, &ans.Value, &ans.Score); err != nil {
			return nil, fmt.Errorf("scan attempt answer: %w", err)
		}
		out = append(out, ans)
	}
	return out, rows.Err()
}

func (s *Store) UpsertAttemptAnswer(ctx context.Context, ans domain.AttemptAnswer) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO attempt_answers (id, attempt_id, question_id, value, score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET value=EXCLUDED.value, score=EXCLUDED.score`,
		ans.ID, ans.AttemptID, ans.QuestionID, ans.Value, ans.Score)
	if err != nil {
		return fmt.Errorf("upsert attempt answer: %w", err)
	}
	return nil
}
