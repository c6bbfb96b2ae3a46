package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/learn-stack/learnstack-lms/internal/grading"
)

// SQLStore persists tests, attempts and results in SQL. Works with both the
// sqlite (modernc) and pgx stdlib drivers; positional $n placeholders are
// understood by both.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

var _ TestStore = (*SQLStore)(nil)
var _ AttemptStore = (*SQLStore)(nil)

func (s *SQLStore) PutTest(ctx context.Context, t Test) error {
	qj, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tests
		(id,title,description,status,time_limit_min,passing_percent,attempts_allowed,questions_per_attempt,shuffle_questions,show_correct_answers,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			title=EXCLUDED.title,
			description=EXCLUDED.description,
			time_limit_min=EXCLUDED.time_limit_min,
			passing_percent=EXCLUDED.passing_percent,
			attempts_allowed=EXCLUDED.attempts_allowed,
			questions_per_attempt=EXCLUDED.questions_per_attempt,
			shuffle_questions=EXCLUDED.shuffle_questions,
			show_correct_answers=EXCLUDED.show_correct_answers,
			questions_json=EXCLUDED.questions_json`,
		t.ID, t.Title, t.Description, string(t.Status), t.TimeLimitMinutes, t.PassingScorePercent,
		t.AttemptsAllowed, t.QuestionsPerAttempt, t.ShuffleQuestions, t.ShowCorrectAnswers,
		string(qj), t.CreatedAt)
	return err
}

const testCols = `id,title,description,status,time_limit_min,passing_percent,attempts_allowed,questions_per_attempt,shuffle_questions,show_correct_answers,questions_json,created_at`

func scanTest(row interface{ Scan(...interface{}) error }) (Test, error) {
	var t Test
	var status, qjson string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.TimeLimitMinutes,
		&t.PassingScorePercent, &t.AttemptsAllowed, &t.QuestionsPerAttempt,
		&t.ShuffleQuestions, &t.ShowCorrectAnswers, &qjson, &t.CreatedAt); err != nil {
		return Test{}, err
	}
	t.Status = TestStatus(status)
	if err := json.Unmarshal([]byte(qjson), &t.Questions); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+testCols+` FROM tests WHERE id=$1`, id)
	t, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Test{}, ErrTestNotFound
	}
	return t, err
}

func (s *SQLStore) SetTestStatus(ctx context.Context, id string, from, to TestStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tests SET status=$3 WHERE id=$1 AND status=$2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tests WHERE id=$1`, id).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTestNotFound
		}
		return err
	}
	return ErrInvalidTransition
}

func (s *SQLStore) ListTests(ctx context.Context, limit, offset int) ([]Test, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+testCols+` FROM tests ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateAttempt numbers the attempt inside a transaction. A concurrent start
// for the same (test, user) pair trips the unique index on attempt_number;
// we retry with a fresh count rather than surfacing the violation.
func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt, maxAttempts int) (Attempt, error) {
	for try := 0; try < 3; try++ {
		created, err := s.tryCreateAttempt(ctx, a, maxAttempts)
		if err == nil || !isUniqueViolation(err) {
			return created, err
		}
	}
	return Attempt{}, errors.New("could not allocate attempt number")
}

func (s *SQLStore) tryCreateAttempt(ctx context.Context, a Attempt, maxAttempts int) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE test_id=$1 AND user_id=$2`,
		a.TestID, a.UserID).Scan(&n); err != nil {
		return Attempt{}, err
	}
	if maxAttempts > 0 && n >= maxAttempts {
		return Attempt{}, ErrAttemptLimitReached
	}
	a.AttemptNumber = n + 1
	a.Version = 1

	oj, err := json.Marshal(a.QuestionOrder)
	if err != nil {
		return Attempt{}, err
	}
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO attempts
		(id,test_id,user_id,attempt_number,state,question_order_json,answers_json,started_at,submitted_at,time_limit_min,version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL,$9,$10)`,
		a.ID, a.TestID, a.UserID, a.AttemptNumber, string(a.State),
		string(oj), string(aj), a.StartedAt, a.TimeLimitMinutes, a.Version); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

const attemptCols = `id,test_id,user_id,attempt_number,state,question_order_json,answers_json,started_at,submitted_at,time_limit_min,version`

func scanAttempt(row interface{ Scan(...interface{}) error }) (Attempt, error) {
	var a Attempt
	var state, ojson, ajson string
	var submitted sql.NullInt64
	if err := row.Scan(&a.ID, &a.TestID, &a.UserID, &a.AttemptNumber, &state,
		&ojson, &ajson, &a.StartedAt, &submitted, &a.TimeLimitMinutes, &a.Version); err != nil {
		return Attempt{}, err
	}
	a.State = AttemptState(state)
	a.SubmittedAt = submitted.Int64
	if err := json.Unmarshal([]byte(ojson), &a.QuestionOrder); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		return Attempt{}, err
	}
	if a.Answers == nil {
		a.Answers = map[string]Answer{}
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, err
}

// UpdateAttempt is an optimistic write guarded by the version column.
func (s *SQLStore) UpdateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET answers_json=$1, state=$2, version=version+1 WHERE id=$3 AND version=$4`,
		string(aj), string(a.State), a.ID, a.Version)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetAttempt(ctx, a.ID); err != nil {
			return Attempt{}, err
		}
		return Attempt{}, ErrVersionConflict
	}
	a.Version++
	return a, nil
}

func (s *SQLStore) MarkSubmitted(ctx context.Context, id string, atUnix int64) (Attempt, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET state=$2, submitted_at=$3, version=version+1
		 WHERE id=$1 AND state IN ($4,$5)`,
		id, string(AttemptSubmitted), atUnix,
		string(AttemptInProgress), string(AttemptExpired))
	if err != nil {
		return Attempt{}, false, err
	}
	won := false
	if n, _ := res.RowsAffected(); n > 0 {
		won = true
	}
	a, err := s.GetAttempt(ctx, id)
	return a, won, err
}

// MarkExpired ignores the observation time: the attempt keeps its original
// deadline as the cutoff.
func (s *SQLStore) MarkExpired(ctx context.Context, id string, _ int64) (Attempt, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET state=$2, version=version+1 WHERE id=$1 AND state=$3`,
		id, string(AttemptExpired), string(AttemptInProgress))
	if err != nil {
		return Attempt{}, err
	}
	a, err := s.GetAttempt(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 && a.State != AttemptExpired {
		return a, ErrInvalidTransition
	}
	return a, nil
}

func (s *SQLStore) MarkGraded(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET state=$2, version=version+1 WHERE id=$1 AND state=$3`,
		id, string(AttemptGraded), string(AttemptSubmitted))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.GetAttempt(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	where := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if opts.TestID != "" {
		add("test_id", opts.TestID)
	}
	if opts.UserID != "" {
		add("user_id", opts.UserID)
	}
	if opts.State != "" {
		add("state", opts.State)
	}
	q := `SELECT ` + attemptCols + ` FROM attempts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY started_at DESC, id LIMIT $%d`, len(args))
	args = append(args, opts.Offset)
	q += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountAttempts(ctx context.Context, testID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE test_id=$1`, testID).Scan(&n)
	return n, err
}

// SaveResult is idempotent: the first writer wins, later saves are no-ops.
func (s *SQLStore) SaveResult(ctx context.Context, r TestResult) error {
	qj, err := json.Marshal(r.QuestionResults)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO results
		(attempt_id,test_id,user_id,total_score,max_score,percentage,passed,pending_manual,question_results_json,total_time_sec,avg_time_sec,completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (attempt_id) DO NOTHING`,
		r.AttemptID, r.TestID, r.UserID, r.TotalScore, r.MaxScore, r.Percentage,
		r.IsPassed, r.PendingManual, string(qj), r.TotalTimeSeconds,
		r.AverageTimePerQuestion, r.CompletedAt)
	return err
}

const resultCols = `attempt_id,test_id,user_id,total_score,max_score,percentage,passed,pending_manual,question_results_json,total_time_sec,avg_time_sec,completed_at`

func scanResult(row interface{ Scan(...interface{}) error }) (TestResult, error) {
	var r TestResult
	var qjson string
	if err := row.Scan(&r.AttemptID, &r.TestID, &r.UserID, &r.TotalScore, &r.MaxScore,
		&r.Percentage, &r.IsPassed, &r.PendingManual, &qjson,
		&r.TotalTimeSeconds, &r.AverageTimePerQuestion, &r.CompletedAt); err != nil {
		return TestResult{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &r.QuestionResults); err != nil {
		return TestResult{}, err
	}
	if r.QuestionResults == nil {
		r.QuestionResults = []grading.QuestionOutcome{}
	}
	return r, nil
}

func (s *SQLStore) GetResult(ctx context.Context, attemptID string) (TestResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultCols+` FROM results WHERE attempt_id=$1`, attemptID)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TestResult{}, ErrNotGraded
	}
	return r, err
}

func (s *SQLStore) ListResults(ctx context.Context, testID string) ([]TestResult, error) {
	return s.listResults(ctx, `test_id`, testID)
}

func (s *SQLStore) ListUserResults(ctx context.Context, userID string) ([]TestResult, error) {
	return s.listResults(ctx, `user_id`, userID)
}

func (s *SQLStore) listResults(ctx context.Context, col, val string) ([]TestResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultCols+` FROM results WHERE `+col+`=$1 ORDER BY completed_at DESC, attempt_id`, val)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TestResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Driver-agnostic sniff; neither driver exposes a portable error code type
// we can depend on without importing both.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "SQLSTATE 23505")
}
