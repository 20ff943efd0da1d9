package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/db"
	"github.com/mind-engage/mindengage-qbank/internal/pool"
	"github.com/mind-engage/mindengage-qbank/internal/session"
)

type fixture struct {
	srv   *httptest.Server
	store *bank.SQLStore
	subj  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dbh.Close() })

	store := bank.NewSQLStore(dbh, "sqlite")
	subj, err := store.InsertSubject(ctx, "Anatomy")
	if err != nil {
		t.Fatal(err)
	}
	selector := pool.NewSelector(store, pool.WithRand(rand.New(rand.NewPCG(1, 1))))
	mgr := session.NewManager(selector, session.NewMemoryStore(), session.NewLeaseSigner("test"))

	r := chi.NewRouter()
	r.Route("/api", func(ar chi.Router) {
		Mount(ar, Deps{
			Bank:            bank.NewService(store, nil, nil),
			Pool:            selector,
			Sessions:        mgr,
			DefaultExamSize: 10,
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: store, subj: subj}
}

// call sends body as JSON and decodes the response into out when given.
func (f *fixture) call(t *testing.T, method, path, lease string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if lease != "" {
		req.Header.Set("Authorization", "Bearer "+lease)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return res.StatusCode
}

// seed creates a question with options A, B, C through the API and marks B.
func (f *fixture) seed(t *testing.T) (bank.Question, bank.AnswerOption) {
	t.Helper()
	var q bank.Question
	if code := f.call(t, "POST", fmt.Sprintf("/api/subjects/%d/questions", f.subj), "", map[string]string{"text": "Largest bone?"}, &q); code != http.StatusCreated {
		t.Fatalf("create question: %d", code)
	}
	var correct bank.AnswerOption
	for _, l := range []string{"A", "B", "C"} {
		var opt bank.AnswerOption
		if code := f.call(t, "POST", fmt.Sprintf("/api/questions/%d/answers", q.ID), "", map[string]string{"label": l, "text": "opt " + l}, &opt); code != http.StatusCreated {
			t.Fatalf("create answer %s: %d", l, code)
		}
		if l == "B" {
			correct = opt
		}
	}
	if code := f.call(t, "PUT", fmt.Sprintf("/api/answers/%d/correct", correct.ID), "", map[string]bool{"isCorrect": true}, nil); code != http.StatusOK {
		t.Fatalf("set correct: %d", code)
	}
	return q, correct
}

func TestQuestionLifecycle(t *testing.T) {
	f := newFixture(t)
	q, correct := f.seed(t)

	var got bank.Question
	if code := f.call(t, "GET", fmt.Sprintf("/api/questions/%d", q.ID), "", nil, &got); code != http.StatusOK {
		t.Fatalf("get: %d", code)
	}
	if o, ok := got.CorrectOption(); !ok || o.ID != correct.ID || len(got.Options) != 3 {
		t.Fatalf("question = %+v", got)
	}

	var list []bank.QuestionSummary
	f.call(t, "GET", fmt.Sprintf("/api/subjects/%d/questions", f.subj), "", nil, &list)
	if len(list) != 1 || list[0].TotalAnswers != 3 || !list[0].HasCorrect {
		t.Errorf("list = %+v", list)
	}

	var errBody map[string]string
	code := f.call(t, "POST", fmt.Sprintf("/api/questions/%d/answers", q.ID), "", map[string]string{"label": "b", "text": "dup"}, &errBody)
	if code != http.StatusConflict || errBody["error"] == "" {
		t.Errorf("duplicate label: %d %v", code, errBody)
	}
	if code := f.call(t, "PUT", fmt.Sprintf("/api/questions/%d", q.ID), "", map[string]string{"text": "  "}, nil); code != http.StatusBadRequest {
		t.Errorf("blank text: %d", code)
	}
	if code := f.call(t, "PUT", fmt.Sprintf("/api/answers/%d/correct", correct.ID), "", map[string]string{}, nil); code != http.StatusBadRequest {
		t.Errorf("missing isCorrect: %d", code)
	}
	if code := f.call(t, "PUT", "/api/answers/9999/correct", "", map[string]bool{"isCorrect": true}, nil); code != http.StatusNotFound {
		t.Errorf("unknown answer: %d", code)
	}
	if code := f.call(t, "GET", "/api/questions/abc", "", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad id: %d", code)
	}

	var sub bank.Subject
	if code := f.call(t, "POST", "/api/subjects", "", map[string]string{"name": "Physiology"}, &sub); code != http.StatusCreated || sub.ID == 0 {
		t.Errorf("create subject: %d %+v", code, sub)
	}
	if code := f.call(t, "POST", "/api/subjects", "", map[string]string{"name": "Anatomy"}, nil); code != http.StatusConflict {
		t.Errorf("duplicate subject: %d", code)
	}
	var subs []bank.Subject
	f.call(t, "GET", "/api/subjects", "", nil, &subs)
	if len(subs) != 2 || subs[0].Name != "Anatomy" {
		t.Errorf("subjects = %+v", subs)
	}

	var stats bank.Stats
	f.call(t, "GET", "/api/stats", "", nil, &stats)
	if stats.TotalSubjects != 2 || stats.TotalQuestions != 1 || stats.MarkedQuestions != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if code := f.call(t, "DELETE", fmt.Sprintf("/api/questions/%d", q.ID), "", nil, nil); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	if code := f.call(t, "GET", fmt.Sprintf("/api/questions/%d", q.ID), "", nil, nil); code != http.StatusNotFound {
		t.Errorf("get after delete: %d", code)
	}
}

func TestRandomExamStripsCorrectFlags(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.seed(t)

	var count map[string]int
	f.call(t, "GET", "/api/exam/eligible-count?scope=all", "", nil, &count)
	if count["total"] != 2 {
		t.Errorf("eligible = %v", count)
	}

	res, err := http.Get(f.srv.URL + "/api/exam/random?scope=todas&count=1")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(res.Body)
	if strings.Contains(buf.String(), "isCorrect") {
		t.Errorf("random exam leaks correct flags: %s", buf.String())
	}
	var exam []examQuestion
	if err := json.Unmarshal(buf.Bytes(), &exam); err != nil {
		t.Fatal(err)
	}
	if len(exam) != 1 || len(exam[0].Options) != 3 {
		t.Errorf("exam = %+v", exam)
	}

	if code := f.call(t, "GET", "/api/exam/random?count=zero", "", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad count: %d", code)
	}
}

type startResponse struct {
	Session session.View `json:"session"`
	Lease   string       `json:"lease"`
}

func TestNoExamPossible(t *testing.T) {
	f := newFixture(t)
	var body map[string]string
	code := f.call(t, "POST", "/api/sessions", "", map[string]any{"scope": "all", "count": 5}, &body)
	if code != http.StatusUnprocessableEntity || !strings.Contains(body["error"], "no exam possible") {
		t.Fatalf("empty pool: %d %v", code, body)
	}
}

func TestDeferredSessionOverHTTP(t *testing.T) {
	f := newFixture(t)
	q, correct := f.seed(t)

	var start startResponse
	code := f.call(t, "POST", "/api/sessions", "", map[string]any{"scope": fmt.Sprint(f.subj), "count": "all", "mode": "deferred"}, &start)
	if code != http.StatusCreated || start.Lease == "" || start.Session.Total != 1 {
		t.Fatalf("start: %d %+v", code, start)
	}
	base := "/api/sessions/" + start.Session.ID

	choice := map[string]int64{"questionId": q.ID, "optionId": correct.ID}
	if code := f.call(t, "POST", base+"/choose", "", choice, nil); code != http.StatusForbidden {
		t.Errorf("choose without lease: %d", code)
	}
	var v session.View
	if code := f.call(t, "POST", base+"/choose", start.Lease, choice, &v); code != http.StatusOK {
		t.Fatalf("choose: %d", code)
	}
	if v.Selected == nil || *v.Selected != correct.ID {
		t.Errorf("view = %+v", v)
	}
	if code := f.call(t, "POST", base+"/navigate", start.Lease, map[string]int{"index": 3}, nil); code != http.StatusBadRequest {
		t.Errorf("navigate out of range: %d", code)
	}
	if code := f.call(t, "POST", base+"/answer", start.Lease, map[string]int64{"optionId": correct.ID}, nil); code != http.StatusConflict {
		t.Errorf("instant answer on deferred session: %d", code)
	}

	var rep struct {
		CorrectCount int    `json:"correctCount"`
		Percentage   int    `json:"percentage"`
		Band         string `json:"band"`
	}
	if code := f.call(t, "POST", base+"/submit", start.Lease, nil, &rep); code != http.StatusOK {
		t.Fatalf("submit: %d", code)
	}
	if rep.CorrectCount != 1 || rep.Percentage != 100 || rep.Band != "excellent" {
		t.Errorf("report = %+v", rep)
	}
	if code := f.call(t, "POST", base+"/submit", start.Lease, nil, nil); code != http.StatusConflict {
		t.Errorf("second submit: %d", code)
	}
	if code := f.call(t, "GET", "/api/sessions/nope", "", nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown session: %d", code)
	}
}

func TestInstantSessionOverHTTP(t *testing.T) {
	f := newFixture(t)
	_, correct := f.seed(t)

	var start startResponse
	if code := f.call(t, "POST", "/api/sessions", "", map[string]any{"mode": "instant", "count": 1}, &start); code != http.StatusCreated {
		t.Fatalf("start: %d", code)
	}
	if start.Session.Feedback != nil {
		t.Fatal("feedback before answering")
	}
	base := "/api/sessions/" + start.Session.ID

	var v session.View
	if code := f.call(t, "POST", base+"/answer", start.Lease, map[string]int64{"optionId": correct.ID}, &v); code != http.StatusOK {
		t.Fatalf("answer: %d", code)
	}
	if v.Feedback == nil || !v.Feedback.Correct || v.Feedback.CorrectOptionID != correct.ID {
		t.Fatalf("feedback = %+v", v.Feedback)
	}
	if code := f.call(t, "POST", base+"/answer", start.Lease, map[string]int64{"optionId": correct.ID}, nil); code != http.StatusConflict {
		t.Errorf("re-answer: %d", code)
	}
	if code := f.call(t, "POST", base+"/advance", start.Lease, nil, &v); code != http.StatusOK {
		t.Fatalf("advance: %d", code)
	}
	if v.Report == nil || v.Report.Percentage != 100 || v.Status != "finished" {
		t.Errorf("final view = %+v", v)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", bank.ErrNotFound), 404},
		{bank.ErrValidation, 400},
		{bank.ErrConflict, 409},
		{session.ErrTransition, 409},
		{session.ErrSessionClosed, 409},
		{session.ErrLeaseHeld, 409},
		{session.ErrBadLease, 403},
		{session.ErrNoExamPossible, 422},
		{bank.ErrIntegrityViolation, 500},
		{fmt.Errorf("q: %w: boom", bank.ErrStore), 500},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestCountFrom(t *testing.T) {
	cases := map[string]int{``: 10, `null`: 10, `3`: 3, `"4"`: 4, `"all"`: 50}
	for raw, want := range cases {
		c, err := countFrom(json.RawMessage(raw), 10)
		if err != nil {
			t.Fatalf("countFrom(%s): %v", raw, err)
		}
		if got := c.Resolve(50); got != want {
			t.Errorf("countFrom(%s).Resolve(50) = %d, want %d", raw, got, want)
		}
	}
	if _, err := countFrom(json.RawMessage(`-2`), 10); err == nil {
		t.Error("negative count accepted")
	}
}
