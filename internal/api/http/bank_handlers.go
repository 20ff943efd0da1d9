package http

import (
	"net/http"
)

// GET /subjects
func ListSubjectsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := d.Bank.ListSubjects(r.Context())
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

// POST /subjects {name}
func CreateSubjectHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name" validate:"required,max=200"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		sub, err := d.Bank.CreateSubject(r.Context(), req.Name)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

// GET /subjects/{subjectID}/questions
func ListQuestionsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "subjectID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		qs, err := d.Bank.ListQuestions(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

// GET /subjects/{subjectID}/questions/full
func ListQuestionsFullHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "subjectID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		qs, err := d.Bank.ListQuestionsWithAnswers(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

// POST /subjects/{subjectID}/questions {number?, text}
func CreateQuestionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "subjectID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		var req struct {
			Number string `json:"number" validate:"max=16"`
			Text   string `json:"text" validate:"required"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		q, err := d.Bank.CreateQuestion(r.Context(), id, req.Number, req.Text)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// GET /questions/{questionID}
func GetQuestionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "questionID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		q, err := d.Bank.GetQuestion(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

type textRequest struct {
	Text string `json:"text" validate:"required"`
}

// PUT /questions/{questionID} {text}
func UpdateQuestionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "questionID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		var req textRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		if err := d.Bank.UpdateQuestionText(r.Context(), id, req.Text); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		success(w)
	}
}

// DELETE /questions/{questionID}
func DeleteQuestionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "questionID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		if err := d.Bank.DeleteQuestion(r.Context(), id); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		success(w)
	}
}

// POST /questions/{questionID}/answers {label, text}
func CreateAnswerHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "questionID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		var req struct {
			Label string `json:"label" validate:"required"`
			Text  string `json:"text" validate:"required"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		opt, err := d.Bank.CreateAnswer(r.Context(), id, req.Label, req.Text)
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusCreated, opt)
	}
}

// PUT /answers/{answerID} {text}
func UpdateAnswerHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "answerID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		var req textRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		if err := d.Bank.UpdateAnswerText(r.Context(), id, req.Text); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		success(w)
	}
}

// PUT /answers/{answerID}/correct {isCorrect}
func SetCorrectHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "answerID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		var req struct {
			IsCorrect *bool `json:"isCorrect" validate:"required"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		if err := d.Bank.SetCorrect(r.Context(), id, *req.IsCorrect); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		success(w)
	}
}

// DELETE /answers/{answerID}
func DeleteAnswerHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "answerID")
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		if err := d.Bank.DeleteAnswer(r.Context(), id); err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		success(w)
	}
}

// GET /stats
func StatsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Bank.Stats(r.Context())
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// GET /stats/subjects
func SubjectStatsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Bank.SubjectStats(r.Context())
		if err != nil {
			writeError(w, r, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
