package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/pool"
)

type examOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type examQuestion struct {
	ID        int64        `json:"id"`
	SubjectID int64        `json:"subjectId"`
	Number    string       `json:"number"`
	Text      string       `json:"text"`
	Options   []examOption `json:"options"`
}

// stripCorrect drops the correct flags so a drawn exam can be sent to the
// learner before it is answered.
func stripCorrect(qs []bank.Question) []examQuestion {
	out := make([]examQuestion, 0, len(qs))
	for _, q := range qs {
		eq := examQuestion{ID: q.ID, SubjectID: q.SubjectID, Number: q.Number, Text: q.Text,
			Options: make([]examOption, 0, len(q.Options))}
		for _, o := range q.Options {
			eq.Options = append(eq.Options, examOption{ID: o.ID, Label: o.Label, Text: o.Text})
		}
		out = append(out, eq)
	}
	return out
}

// GET /exam/eligible-count?scope=
func EligibleCountHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := pool.ParseScope(r.URL.Query().Get("scope"))
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		n, err := d.Pool.CountEligible(r.Context(), scope)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"total": n})
	}
}

// GET /exam/random?scope=&count=
func RandomExamHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		scope, err := pool.ParseScope(q.Get("scope"))
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		count, err := pool.ParseCount(q.Get("count"), d.DefaultExamSize)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		qs, err := d.Pool.DrawRandom(r.Context(), scope, count)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, stripCorrect(qs))
	}
}

// countFrom accepts a JSON number, a JSON string or nothing.
func countFrom(raw json.RawMessage, def int) (pool.Count, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return pool.ParseCount("", def)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return pool.ParseCount(s, def)
	}
	return pool.ParseCount(string(raw), def)
}
