package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mind-engage/mindengage-qbank/internal/db"
)

// SQLStore implements Repository over database/sql. Queries use $N
// placeholders, which both modernc sqlite and pgx accept.
//
// SQLite runs on a single pooled connection: every method drains its rows
// before issuing the next statement, and transactional methods only touch tx.
type SQLStore struct {
	db     *sql.DB
	driver db.Driver
}

func NewSQLStore(h *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: h, driver: db.Normalize(driver)}
}

const eligibleJoin = `FROM questions q
	JOIN answers a ON a.id = q.correct_answer_id AND a.question_id = q.id`

func (s *SQLStore) InsertSubject(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("subject name: %w", ErrValidation)
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO subjects (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, classify(err, "insert subject")
	}
	return id, nil
}

func (s *SQLStore) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM subjects ORDER BY name`)
	if err != nil {
		return nil, classify(err, "list subjects")
	}
	defer rows.Close()
	out := []Subject{}
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name); err != nil {
			return nil, classify(err, "list subjects")
		}
		out = append(out, sub)
	}
	return out, classify(rows.Err(), "list subjects")
}

func (s *SQLStore) ListQuestions(ctx context.Context, subjectID int64) ([]QuestionSummary, error) {
	if err := s.subjectExists(ctx, subjectID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.subject_id, q.number, q.text, q.correct_answer_id,
		       (SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id)
		FROM questions q
		WHERE q.subject_id = $1`, subjectID)
	if err != nil {
		return nil, classify(err, "list questions")
	}
	defer rows.Close()
	out := []QuestionSummary{}
	for rows.Next() {
		var qs QuestionSummary
		var correct sql.NullInt64
		if err := rows.Scan(&qs.ID, &qs.SubjectID, &qs.Number, &qs.Text, &correct, &qs.TotalAnswers); err != nil {
			return nil, classify(err, "list questions")
		}
		qs.HasCorrect = correct.Valid
		out = append(out, qs)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list questions")
	}
	sortByNumber(out, func(q QuestionSummary) string { return q.Number })
	return out, nil
}

func (s *SQLStore) ListQuestionsWithAnswers(ctx context.Context, subjectID int64) ([]Question, error) {
	if err := s.subjectExists(ctx, subjectID); err != nil {
		return nil, err
	}
	qs, correct, err := s.queryQuestions(ctx,
		`SELECT id, subject_id, number, text, correct_answer_id FROM questions WHERE subject_id = $1`, subjectID)
	if err != nil {
		return nil, err
	}
	opts, err := s.queryOptions(ctx, `
		SELECT a.id, a.question_id, a.label, a.text
		FROM answers a JOIN questions q ON q.id = a.question_id
		WHERE q.subject_id = $1
		ORDER BY a.question_id, a.label`, subjectID)
	if err != nil {
		return nil, err
	}
	attachOptions(qs, correct, opts)
	sortByNumber(qs, func(q Question) string { return q.Number })
	return qs, nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, id int64) (Question, error) {
	qs, correct, err := s.queryQuestions(ctx,
		`SELECT id, subject_id, number, text, correct_answer_id FROM questions WHERE id = $1`, id)
	if err != nil {
		return Question{}, err
	}
	if len(qs) == 0 {
		return Question{}, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	opts, err := s.queryOptions(ctx,
		`SELECT id, question_id, label, text FROM answers WHERE question_id = $1 ORDER BY label`, id)
	if err != nil {
		return Question{}, err
	}
	attachOptions(qs, correct, opts)
	return qs[0], nil
}

func (s *SQLStore) InsertQuestion(ctx context.Context, subjectID int64, number, text string) (int64, error) {
	var id int64
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM subjects WHERE id = $1`, subjectID).Scan(&one); err != nil {
			return classify(err, fmt.Sprintf("subject %d", subjectID))
		}
		if number == "" {
			n, err := nextNumberTx(ctx, tx, subjectID)
			if err != nil {
				return err
			}
			number = n
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO questions (subject_id, number, text) VALUES ($1, $2, $3) RETURNING id`,
			subjectID, number, text).Scan(&id)
		if err != nil {
			return classify(err, fmt.Sprintf("insert question %q", number))
		}
		return nil
	})
	if err != nil {
		return 0, classify(err, "insert question")
	}
	return id, nil
}

func nextNumberTx(ctx context.Context, tx *sql.Tx, subjectID int64) (string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT number FROM questions WHERE subject_id = $1`, subjectID)
	if err != nil {
		return "", classify(err, "question numbers")
	}
	defer rows.Close()
	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return "", classify(err, "question numbers")
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return "", classify(err, "question numbers")
	}
	return nextNumber(numbers), nil
}

func (s *SQLStore) UpdateQuestionText(ctx context.Context, id int64, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET text = $1 WHERE id = $2`, text, id)
	return affectedOne(res, err, fmt.Sprintf("question %d", id))
}

// DeleteQuestion removes child answers before the question, in one transaction.
func (s *SQLStore) DeleteQuestion(ctx context.Context, id int64) error {
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE question_id = $1`, id); err != nil {
			return classify(err, "delete answers")
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
		return affectedOne(res, err, fmt.Sprintf("question %d", id))
	})
	return classify(err, "delete question")
}

func (s *SQLStore) InsertAnswer(ctx context.Context, questionID int64, label, text string) (int64, error) {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE id = $1`, questionID).Scan(&one); err != nil {
		return 0, classify(err, fmt.Sprintf("question %d", questionID))
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO answers (question_id, label, text) VALUES ($1, $2, $3) RETURNING id`,
		questionID, label, text).Scan(&id)
	if err != nil {
		return 0, classify(err, fmt.Sprintf("answer label %q", label))
	}
	return id, nil
}

func (s *SQLStore) UpdateAnswerText(ctx context.Context, id int64, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE answers SET text = $1 WHERE id = $2`, text, id)
	return affectedOne(res, err, fmt.Sprintf("answer %d", id))
}

// DeleteAnswer also drops the question's correct reference when it pointed
// at the deleted answer.
func (s *SQLStore) DeleteAnswer(ctx context.Context, id int64) error {
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var qid int64
		if err := tx.QueryRowContext(ctx, `SELECT question_id FROM answers WHERE id = $1`, id).Scan(&qid); err != nil {
			return classify(err, fmt.Sprintf("answer %d", id))
		}
		if s.driver == db.DriverPostgres {
			// Same lock as SetCorrectAnswer so the two serialize per question.
			var locked int64
			if err := tx.QueryRowContext(ctx, `SELECT id FROM questions WHERE id = $1 FOR UPDATE`, qid).Scan(&locked); err != nil {
				return classify(err, fmt.Sprintf("question %d", qid))
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE questions SET correct_answer_id = NULL WHERE id = $1 AND correct_answer_id = $2`, qid, id); err != nil {
			return classify(err, "clear correct answer")
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE id = $1`, id)
		return affectedOne(res, err, fmt.Sprintf("answer %d", id))
	})
	return classify(err, "delete answer")
}

func (s *SQLStore) QuestionIDForAnswer(ctx context.Context, answerID int64) (int64, error) {
	var qid int64
	err := s.db.QueryRowContext(ctx, `SELECT question_id FROM answers WHERE id = $1`, answerID).Scan(&qid)
	if err != nil {
		return 0, classify(err, fmt.Sprintf("answer %d", answerID))
	}
	return qid, nil
}

// SetCorrectAnswer runs clear-then-set in one transaction. On Postgres the
// question row is locked first so concurrent calls on siblings serialize;
// SQLite gets the same effect from its single connection.
func (s *SQLStore) SetCorrectAnswer(ctx context.Context, answerID int64, makeCorrect bool) (int64, error) {
	var qid int64
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT question_id FROM answers WHERE id = $1`, answerID).Scan(&qid); err != nil {
			return classify(err, fmt.Sprintf("answer %d", answerID))
		}
		if s.driver == db.DriverPostgres {
			var locked int64
			if err := tx.QueryRowContext(ctx, `SELECT id FROM questions WHERE id = $1 FOR UPDATE`, qid).Scan(&locked); err != nil {
				return classify(err, fmt.Sprintf("question %d", qid))
			}
			// A delete may have committed while we waited for the lock.
			if err := answerStillOn(ctx, tx, answerID, qid); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE questions SET correct_answer_id = NULL WHERE id = $1`, qid); err != nil {
			return classify(err, "clear correct answer")
		}
		if !makeCorrect {
			return nil
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE questions SET correct_answer_id = $1
			WHERE id = $2 AND EXISTS (SELECT 1 FROM answers WHERE id = $1 AND question_id = $2)`,
			answerID, qid)
		if err != nil {
			return classify(err, "set correct answer")
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			if err := answerStillOn(ctx, tx, answerID, qid); err != nil {
				return err
			}
			return fmt.Errorf("set correct answer %d on question %d: %w", answerID, qid, ErrIntegrityViolation)
		}
		return nil
	})
	if errors.Is(err, db.ErrCommit) || db.IsSerializationFailure(err) {
		return qid, fmt.Errorf("set correct answer %d: %w: %w", answerID, ErrIntegrityViolation, err)
	}
	if err != nil {
		return qid, classify(err, "set correct answer")
	}
	return qid, nil
}

// answerStillOn returns ErrNotFound once the answer no longer belongs to
// the question, so a lost race with DeleteAnswer is not reported as an
// integrity violation.
func answerStillOn(ctx context.Context, tx *sql.Tx, answerID, qid int64) error {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE id = $1 AND question_id = $2`, answerID, qid).Scan(&n)
	if err != nil {
		return classify(err, fmt.Sprintf("answer %d", answerID))
	}
	if n == 0 {
		return fmt.Errorf("answer %d was deleted: %w", answerID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) CountEligible(ctx context.Context, scope Scope) (int, error) {
	query := `SELECT COUNT(*) ` + eligibleJoin
	var args []any
	if !scope.All() {
		query += ` WHERE q.subject_id = $1`
		args = append(args, scope.SubjectID)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, classify(err, "count eligible")
	}
	return n, nil
}

// SampleEligibleIDs draws n distinct eligible ids uniformly using the
// store's random ordering.
func (s *SQLStore) SampleEligibleIDs(ctx context.Context, scope Scope, n int) ([]int64, error) {
	if n <= 0 {
		return []int64{}, nil
	}
	query := `SELECT q.id ` + eligibleJoin
	args := []any{}
	if !scope.All() {
		query += ` WHERE q.subject_id = $1`
		args = append(args, scope.SubjectID)
	}
	args = append(args, n)
	query += fmt.Sprintf(` ORDER BY random() LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "sample eligible")
	}
	defer rows.Close()
	ids := make([]int64, 0, n)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err, "sample eligible")
		}
		ids = append(ids, id)
	}
	return ids, classify(rows.Err(), "sample eligible")
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM subjects), (SELECT COUNT(*) FROM questions)`).
		Scan(&st.TotalSubjects, &st.TotalQuestions)
	if err != nil {
		return Stats{}, classify(err, "stats")
	}
	marked, err := s.CountEligible(ctx, AllSubjects)
	if err != nil {
		return Stats{}, err
	}
	st.MarkedQuestions = marked
	st.UncertainQuestions = st.TotalQuestions - marked
	return st, nil
}

func (s *SQLStore) SubjectStats(ctx context.Context) ([]SubjectStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, COUNT(q.id), COUNT(a.id)
		FROM subjects s
		LEFT JOIN questions q ON q.subject_id = s.id
		LEFT JOIN answers a ON a.id = q.correct_answer_id AND a.question_id = q.id
		GROUP BY s.id, s.name
		ORDER BY s.name`)
	if err != nil {
		return nil, classify(err, "subject stats")
	}
	defer rows.Close()
	out := []SubjectStats{}
	for rows.Next() {
		var st SubjectStats
		if err := rows.Scan(&st.ID, &st.Name, &st.Total, &st.Marked); err != nil {
			return nil, classify(err, "subject stats")
		}
		st.Uncertain = st.Total - st.Marked
		st.MarkedPercentage = percent(st.Marked, st.Total)
		out = append(out, st)
	}
	return out, classify(rows.Err(), "subject stats")
}

// ---- helpers ----

func (s *SQLStore) subjectExists(ctx context.Context, id int64) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM subjects WHERE id = $1`, id).Scan(&one); err != nil {
		return classify(err, fmt.Sprintf("subject %d", id))
	}
	return nil
}

func (s *SQLStore) queryQuestions(ctx context.Context, query string, args ...any) ([]Question, map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, classify(err, "query questions")
	}
	defer rows.Close()
	qs := []Question{}
	correct := map[int64]int64{}
	for rows.Next() {
		var q Question
		var c sql.NullInt64
		if err := rows.Scan(&q.ID, &q.SubjectID, &q.Number, &q.Text, &c); err != nil {
			return nil, nil, classify(err, "query questions")
		}
		if c.Valid {
			correct[q.ID] = c.Int64
		}
		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, classify(err, "query questions")
	}
	return qs, correct, nil
}

func (s *SQLStore) queryOptions(ctx context.Context, query string, args ...any) ([]AnswerOption, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "query answers")
	}
	defer rows.Close()
	out := []AnswerOption{}
	for rows.Next() {
		var o AnswerOption
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Label, &o.Text); err != nil {
			return nil, classify(err, "query answers")
		}
		out = append(out, o)
	}
	return out, classify(rows.Err(), "query answers")
}

func attachOptions(qs []Question, correct map[int64]int64, opts []AnswerOption) {
	idx := make(map[int64]int, len(qs))
	for i := range qs {
		idx[qs[i].ID] = i
		qs[i].Options = []AnswerOption{}
	}
	for _, o := range opts {
		i, ok := idx[o.QuestionID]
		if !ok {
			continue
		}
		if c, ok := correct[o.QuestionID]; ok && c == o.ID {
			o.IsCorrect = true
		}
		qs[i].Options = append(qs[i].Options, o)
	}
}

func affectedOne(res sql.Result, err error, what string) error {
	if err != nil {
		return classify(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, what)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// classify maps driver errors onto the package's sentinels. Errors that are
// already classified pass through.
func classify(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation), errors.Is(err, ErrConflict),
		errors.Is(err, ErrIntegrityViolation), errors.Is(err, ErrStore):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %w", what, ErrStore, err)
	}
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}
