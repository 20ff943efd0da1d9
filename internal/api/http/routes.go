package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/logger"
	"github.com/mind-engage/mindengage-qbank/internal/pool"
	"github.com/mind-engage/mindengage-qbank/internal/session"
)

type Deps struct {
	Bank            *bank.Service
	Pool            *pool.Selector
	Sessions        *session.Manager
	Log             *logger.Logger
	DefaultExamSize int
}

// Mount registers the question bank API on r; main mounts it under /api.
func Mount(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = logger.Nop()
	}

	r.Get("/subjects", ListSubjectsHandler(d))
	r.Post("/subjects", CreateSubjectHandler(d))
	r.Route("/subjects/{subjectID}/questions", func(sr chi.Router) {
		sr.Get("/", ListQuestionsHandler(d))
		sr.Get("/full", ListQuestionsFullHandler(d))
		sr.Post("/", CreateQuestionHandler(d))
	})

	r.Route("/questions/{questionID}", func(qr chi.Router) {
		qr.Get("/", GetQuestionHandler(d))
		qr.Put("/", UpdateQuestionHandler(d))
		qr.Delete("/", DeleteQuestionHandler(d))
		qr.Post("/answers", CreateAnswerHandler(d))
	})

	r.Route("/answers/{answerID}", func(ar chi.Router) {
		ar.Put("/", UpdateAnswerHandler(d))
		ar.Delete("/", DeleteAnswerHandler(d))
		ar.Put("/correct", SetCorrectHandler(d))
	})

	r.Get("/stats", StatsHandler(d))
	r.Get("/stats/subjects", SubjectStatsHandler(d))

	r.Get("/exam/eligible-count", EligibleCountHandler(d))
	r.Get("/exam/random", RandomExamHandler(d))

	r.Post("/sessions", StartSessionHandler(d))
	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", GetSessionHandler(d))
		sr.Post("/navigate", NavigateHandler(d))
		sr.Post("/choose", ChooseHandler(d))
		sr.Post("/submit", SubmitHandler(d))
		sr.Post("/answer", AnswerHandler(d))
		sr.Post("/advance", AdvanceHandler(d))
	})
}
