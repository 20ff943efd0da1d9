package bank

import "context"

// Repository is the narrow contract the core consumes from persistence.
type Repository interface {
	InsertSubject(ctx context.Context, name string) (int64, error)
	ListSubjects(ctx context.Context) ([]Subject, error)
	ListQuestions(ctx context.Context, subjectID int64) ([]QuestionSummary, error)
	ListQuestionsWithAnswers(ctx context.Context, subjectID int64) ([]Question, error)
	GetQuestion(ctx context.Context, id int64) (Question, error)

	InsertQuestion(ctx context.Context, subjectID int64, number, text string) (int64, error)
	UpdateQuestionText(ctx context.Context, id int64, text string) error
	DeleteQuestion(ctx context.Context, id int64) error

	InsertAnswer(ctx context.Context, questionID int64, label, text string) (int64, error)
	UpdateAnswerText(ctx context.Context, id int64, text string) error
	DeleteAnswer(ctx context.Context, id int64) error

	// QuestionIDForAnswer resolves the owning question of an answer.
	QuestionIDForAnswer(ctx context.Context, answerID int64) (int64, error)
	// SetCorrectAnswer clears the question's correct answer and then, when
	// makeCorrect is set, points it at answerID. Both steps are one transaction.
	SetCorrectAnswer(ctx context.Context, answerID int64, makeCorrect bool) (questionID int64, err error)

	CountEligible(ctx context.Context, scope Scope) (int, error)
	SampleEligibleIDs(ctx context.Context, scope Scope, n int) ([]int64, error)

	Stats(ctx context.Context) (Stats, error)
	SubjectStats(ctx context.Context) ([]SubjectStats, error)
}
