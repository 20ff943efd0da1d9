package bank_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/db"
)

func newTestStore(t *testing.T) (*bank.SQLStore, *sql.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbh, err := db.Open(context.Background(), db.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return bank.NewSQLStore(dbh, "sqlite"), dbh
}

// seedQuestion creates a question with one answer per label and returns the
// answer ids in label order.
func seedQuestion(t *testing.T, st *bank.SQLStore, subjectID int64, number string, labels ...string) (int64, []int64) {
	t.Helper()
	ctx := context.Background()
	qid, err := st.InsertQuestion(ctx, subjectID, number, "Question "+number)
	if err != nil {
		t.Fatalf("insert question %s: %v", number, err)
	}
	ids := make([]int64, 0, len(labels))
	for _, l := range labels {
		id, err := st.InsertAnswer(ctx, qid, l, "Option "+l)
		if err != nil {
			t.Fatalf("insert answer %s: %v", l, err)
		}
		ids = append(ids, id)
	}
	return qid, ids
}

func mustSubject(t *testing.T, st *bank.SQLStore, name string) int64 {
	t.Helper()
	id, err := st.InsertSubject(context.Background(), name)
	if err != nil {
		t.Fatalf("insert subject: %v", err)
	}
	return id
}

func correctCount(t *testing.T, st *bank.SQLStore, qid int64) int {
	t.Helper()
	q, err := st.GetQuestion(context.Background(), qid)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	n := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			n++
		}
	}
	return n
}

func TestSetCorrectRadioButton(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	sub := mustSubject(t, st, "Anatomy")
	qid, ids := seedQuestion(t, st, sub, "1", "A", "B", "C")

	if _, err := st.SetCorrectAnswer(ctx, ids[0], true); err != nil {
		t.Fatal(err)
	}
	if _, err := st.SetCorrectAnswer(ctx, ids[1], true); err != nil {
		t.Fatal(err)
	}
	q, err := st.GetQuestion(ctx, qid)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range q.Options {
		want := o.ID == ids[1]
		if o.IsCorrect != want {
			t.Errorf("option %s correct=%v, want %v", o.Label, o.IsCorrect, want)
		}
	}
	if !q.Eligible() {
		t.Error("question should be eligible")
	}
}

func TestSetCorrectFalseLeavesNoCorrect(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	sub := mustSubject(t, st, "Physiology")
	qid, ids := seedQuestion(t, st, sub, "1", "A", "B")

	if _, err := st.SetCorrectAnswer(ctx, ids[0], true); err != nil {
		t.Fatal(err)
	}
	if _, err := st.SetCorrectAnswer(ctx, ids[1], false); err != nil {
		t.Fatal(err)
	}
	if n := correctCount(t, st, qid); n != 0 {
		t.Fatalf("correct count = %d, want 0", n)
	}
	n, err := st.CountEligible(ctx, bank.SubjectScope(sub))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("eligible = %d, want 0", n)
	}
}

func TestSetCorrectMissingAnswer(t *testing.T) {
	st, _ := newTestStore(t)
	_, err := st.SetCorrectAnswer(context.Background(), 999, true)
	if !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentSetCorrectKeepsSingleCorrect(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	sub := mustSubject(t, st, "Pharmacology")
	qid, ids := seedQuestion(t, st, sub, "1", "A", "B", "C", "D")

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := st.SetCorrectAnswer(ctx, ids[i%len(ids)], i%5 != 0); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("set correct: %v", err)
	}
	if n := correctCount(t, st, qid); n > 1 {
		t.Fatalf("correct count = %d, want <= 1", n)
	}
}

func TestInsertAnswerDuplicateLabel(t *testing.T) {
	st, _ := newTestStore(t)
	sub := mustSubject(t, st, "Biochemistry")
	qid, _ := seedQuestion(t, st, sub, "1", "A")
	_, err := st.InsertAnswer(context.Background(), qid, "A", "again")
	if !errors.Is(err, bank.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestInsertAnswerMissingQuestion(t *testing.T) {
	st, _ := newTestStore(t)
	_, err := st.InsertAnswer(context.Background(), 42, "A", "x")
	if !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteQuestionRemovesAnswers(t *testing.T) {
	st, dbh := newTestStore(t)
	ctx := context.Background()
	sub := mustSubject(t, st, "Histology")
	qid, ids := seedQuestion(t, st, sub, "1", "A", "B", "C")
	if _, err := st.SetCorrectAnswer(ctx, ids[2], true); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteQuestion(ctx, qid); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetQuestion(ctx, qid); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	var orphans int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM answers WHERE question_id = $1`, qid).Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("%d orphaned answers", orphans)
	}
	if err := st.DeleteQuestion(ctx, qid); !errors.Is(err, bank.ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestDeleteCorrectAnswerDropsEligibility(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	sub := mustSubject(t, st, "Genetics")
	qid, ids := seedQuestion(t, st, sub, "1", "A", "B")
	if _, err := st.SetCorrectAnswer(ctx, ids[0], true); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteAnswer(ctx, ids[0]); err != nil {
		t.Fatal(err)
	}
	n, err := st.CountEligible(ctx, bank.AllSubjects)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("eligible = %d, want 0", n)
	}
	// A new answer must not inherit the old correct reference.
	if _, err := st.InsertAnswer(ctx, qid, "C", "new"); err != nil {
		t.Fatal(err)
	}
	if c := correctCount(t, st, qid); c != 0 {
		t.Errorf("correct count = %d, want 0", c)
	}
}

func TestInsertQuestionNumbering(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	sub := mustSubject(t, st, "Microbiology")
	for _, n := range []string{"1", "2", "10", "7b"} {
		seedQuestion(t, st, sub, n)
	}
	id, err := st.InsertQuestion(ctx, sub, "", "auto numbered")
	if err != nil {
		t.Fatal(err)
	}
	q, err := st.GetQuestion(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if q.Number != "11" {
		t.Errorf("number = %q, want 11", q.Number)
	}
	if _, err := st.InsertQuestion(ctx, sub, "2", "dup"); !errors.Is(err, bank.ErrConflict) {
		t.Errorf("duplicate number: %v, want ErrConflict", err)
	}
	if _, err := st.InsertQuestion(ctx, 999, "", "orphan"); !errors.Is(err, bank.ErrNotFound) {
		t.Errorf("missing subject: %v, want ErrNotFound", err)
	}
}

func TestListQuestionsNumericOrder(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	sub := mustSubject(t, st, "Pathology")
	for _, n := range []string{"10", "2", "x", "1"} {
		seedQuestion(t, st, sub, n, "A", "B")
	}
	list, err := st.ListQuestions(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, q := range list {
		got = append(got, q.Number)
		if q.TotalAnswers != 2 {
			t.Errorf("question %s total answers = %d", q.Number, q.TotalAnswers)
		}
	}
	if strings.Join(got, ",") != "1,2,10,x" {
		t.Errorf("order = %v", got)
	}

	full, err := st.ListQuestionsWithAnswers(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 4 || len(full[0].Options) != 2 || full[0].Options[0].Label != "A" {
		t.Errorf("unexpected full listing: %+v", full)
	}
	if _, err := st.ListQuestions(ctx, 999); !errors.Is(err, bank.ErrNotFound) {
		t.Errorf("missing subject: %v", err)
	}
}

func TestEligibilityAndStats(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	a := mustSubject(t, st, "A subject")
	b := mustSubject(t, st, "B subject")
	_, a1 := seedQuestion(t, st, a, "1", "A", "B")
	seedQuestion(t, st, a, "2", "A", "B")
	_, b1 := seedQuestion(t, st, b, "1", "A", "B")
	for _, id := range []int64{a1[1], b1[0]} {
		if _, err := st.SetCorrectAnswer(ctx, id, true); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		scope bank.Scope
		want  int
	}{
		{bank.AllSubjects, 2},
		{bank.SubjectScope(a), 1},
		{bank.SubjectScope(b), 1},
		{bank.SubjectScope(999), 0},
	}
	for _, tc := range cases {
		n, err := st.CountEligible(ctx, tc.scope)
		if err != nil {
			t.Fatal(err)
		}
		if n != tc.want {
			t.Errorf("CountEligible(%s) = %d, want %d", tc.scope, n, tc.want)
		}
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := bank.Stats{TotalSubjects: 2, TotalQuestions: 3, MarkedQuestions: 2, UncertainQuestions: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	per, err := st.SubjectStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(per) != 2 || per[0].Name != "A subject" {
		t.Fatalf("subject stats = %+v", per)
	}
	if per[0].Total != 2 || per[0].Marked != 1 || per[0].Uncertain != 1 || per[0].MarkedPercentage != 50 {
		t.Errorf("A stats = %+v", per[0])
	}
	if per[1].MarkedPercentage != 100 {
		t.Errorf("B stats = %+v", per[1])
	}
}

func TestSampleEligibleIDsDistinctAndScoped(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	a := mustSubject(t, st, "Sampled")
	b := mustSubject(t, st, "Other")
	eligible := map[int64]bool{}
	for i := 1; i <= 8; i++ {
		qid, ids := seedQuestion(t, st, a, fmt.Sprint(i), "A", "B")
		if i%4 == 0 {
			continue // uncertain
		}
		if _, err := st.SetCorrectAnswer(ctx, ids[0], true); err != nil {
			t.Fatal(err)
		}
		eligible[qid] = true
	}
	_, ob := seedQuestion(t, st, b, "1", "A")
	if _, err := st.SetCorrectAnswer(ctx, ob[0], true); err != nil {
		t.Fatal(err)
	}

	ids, err := st.SampleEligibleIDs(ctx, bank.SubjectScope(a), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != len(eligible) {
		t.Fatalf("got %d ids, want %d", len(ids), len(eligible))
	}
	seen := map[int64]bool{}
	for _, id := range ids {
		if !eligible[id] {
			t.Errorf("id %d is not an eligible question of the subject", id)
		}
		if seen[id] {
			t.Errorf("id %d drawn twice", id)
		}
		seen[id] = true
	}
	few, err := st.SampleEligibleIDs(ctx, bank.AllSubjects, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(few) != 3 {
		t.Errorf("got %d ids, want 3", len(few))
	}
}

func TestSetCorrectLosesRaceWithDelete(t *testing.T) {
	st, dbh := newTestStore(t)
	ctx := context.Background()
	sub := mustSubject(t, st, "Histology")
	qid, ids := seedQuestion(t, st, sub, "1", "A", "B")

	// Stand-in for a DeleteAnswer landing between the clear and the set.
	if _, err := dbh.ExecContext(ctx, `
		CREATE TRIGGER drop_b AFTER UPDATE OF correct_answer_id ON questions
		WHEN NEW.correct_answer_id IS NULL
		BEGIN
			DELETE FROM answers WHERE question_id = NEW.id AND label = 'B';
		END`); err != nil {
		t.Fatal(err)
	}

	_, err := st.SetCorrectAnswer(ctx, ids[1], true)
	if !errors.Is(err, bank.ErrNotFound) || errors.Is(err, bank.ErrIntegrityViolation) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if correctCount(t, st, qid) != 0 {
		t.Error("failed set must not leave a correct answer")
	}
}
