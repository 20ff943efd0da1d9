package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/pool"
	"github.com/mind-engage/mindengage-qbank/internal/session"
)

// POST /sessions {scope, count, mode} -> {session, lease}
func StartSessionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Scope string          `json:"scope"`
			Count json.RawMessage `json:"count"`
			Mode  string          `json:"mode" validate:"omitempty,oneof=deferred instant test practice practica"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		scope, err := pool.ParseScope(req.Scope)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		count, err := countFrom(req.Count, d.DefaultExamSize)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		mode, err := session.ParseMode(req.Mode)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		view, lease, err := d.Sessions.Start(r.Context(), scope, count, mode)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"session": view, "lease": lease})
	}
}

// GET /sessions/{sessionID}
func GetSessionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := d.Sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /sessions/{sessionID}/navigate {index} or {direction: next|prev}
func NavigateHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index     *int   `json:"index" validate:"omitempty,min=0"`
			Direction string `json:"direction" validate:"omitempty,oneof=next prev"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		id, lease := chi.URLParam(r, "sessionID"), leaseFrom(r)
		var (
			v   session.View
			err error
		)
		switch {
		case req.Index != nil:
			v, err = d.Sessions.Navigate(r.Context(), id, lease, *req.Index)
		case req.Direction != "":
			v, err = d.Sessions.Step(r.Context(), id, lease, req.Direction == "next")
		default:
			err = fmt.Errorf("index or direction required: %w", bank.ErrValidation)
		}
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /sessions/{sessionID}/choose {questionId, optionId}; a null optionId
// clears the answer.
func ChooseHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID int64  `json:"questionId" validate:"required"`
			OptionID   *int64 `json:"optionId"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		id, lease := chi.URLParam(r, "sessionID"), leaseFrom(r)
		var (
			v   session.View
			err error
		)
		if req.OptionID == nil {
			v, err = d.Sessions.Clear(r.Context(), id, lease, req.QuestionID)
		} else {
			v, err = d.Sessions.Choose(r.Context(), id, lease, req.QuestionID, *req.OptionID)
		}
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /sessions/{sessionID}/submit
func SubmitHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := d.Sessions.Submit(r.Context(), chi.URLParam(r, "sessionID"), leaseFrom(r))
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// POST /sessions/{sessionID}/answer {optionId}
func AnswerHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OptionID int64 `json:"optionId" validate:"required"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		v, err := d.Sessions.Answer(r.Context(), chi.URLParam(r, "sessionID"), leaseFrom(r), req.OptionID)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /sessions/{sessionID}/advance
func AdvanceHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := d.Sessions.Advance(r.Context(), chi.URLParam(r, "sessionID"), leaseFrom(r))
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}
