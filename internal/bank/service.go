package bank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mind-engage/mindengage-qbank/internal/logger"
	syncx "github.com/mind-engage/mindengage-qbank/internal/sync"
)

// EventAppender records mutations for later audit (e.g. what the offline
// labeler changed).
type EventAppender interface {
	Append(ctx context.Context, e syncx.Event) error
}

// Service is the answer integrity manager: every mutation of questions and
// answers goes through it.
type Service struct {
	repo   Repository
	events EventAppender
	log    *logger.Logger
}

func NewService(repo Repository, events EventAppender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, events: events, log: log.With("service", "bank")}
}

// SetCorrect applies radio-button semantics: the question ends up with the
// target as its only correct answer, or with none when makeCorrect is false.
func (s *Service) SetCorrect(ctx context.Context, answerID int64, makeCorrect bool) error {
	qid, err := s.repo.SetCorrectAnswer(ctx, answerID, makeCorrect)
	if err != nil {
		if errors.Is(err, ErrIntegrityViolation) {
			s.log.Error("integrity violation on set correct",
				"severity", "escalate", "answer_id", answerID, "question_id", qid, "error", err)
		}
		return err
	}
	s.log.Info("answer marked", "answer_id", answerID, "question_id", qid, "correct", makeCorrect)
	s.record(ctx, "AnswerMarked", fmt.Sprintf("question:%d", qid), map[string]any{
		"questionId": qid,
		"answerId":   answerID,
		"isCorrect":  makeCorrect,
	})
	return nil
}

func (s *Service) UpdateQuestionText(ctx context.Context, questionID int64, text string) error {
	text, err := requireText("question text", text)
	if err != nil {
		return err
	}
	return s.repo.UpdateQuestionText(ctx, questionID, text)
}

func (s *Service) UpdateAnswerText(ctx context.Context, answerID int64, text string) error {
	text, err := requireText("answer text", text)
	if err != nil {
		return err
	}
	return s.repo.UpdateAnswerText(ctx, answerID, text)
}

// CreateQuestion adds a question to a subject. An empty number picks the
// next one after the subject's highest numeric number.
func (s *Service) CreateQuestion(ctx context.Context, subjectID int64, number, text string) (Question, error) {
	text, err := requireText("question text", text)
	if err != nil {
		return Question{}, err
	}
	id, err := s.repo.InsertQuestion(ctx, subjectID, strings.TrimSpace(number), text)
	if err != nil {
		return Question{}, err
	}
	return s.repo.GetQuestion(ctx, id)
}

// CreateAnswer adds an option to a question. New options are never correct.
func (s *Service) CreateAnswer(ctx context.Context, questionID int64, label, text string) (AnswerOption, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if utf8.RuneCountInString(label) != 1 || !unicode.IsLetter([]rune(label)[0]) {
		return AnswerOption{}, fmt.Errorf("label %q must be a single letter: %w", label, ErrValidation)
	}
	text, err := requireText("answer text", text)
	if err != nil {
		return AnswerOption{}, err
	}
	id, err := s.repo.InsertAnswer(ctx, questionID, label, text)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return AnswerOption{}, fmt.Errorf("label %q already used on question %d: %w", label, questionID, ErrConflict)
		}
		return AnswerOption{}, err
	}
	return AnswerOption{ID: id, QuestionID: questionID, Label: label, Text: text}, nil
}

func (s *Service) DeleteAnswer(ctx context.Context, answerID int64) error {
	return s.repo.DeleteAnswer(ctx, answerID)
}

// DeleteQuestion removes the question together with its answers.
func (s *Service) DeleteQuestion(ctx context.Context, questionID int64) error {
	return s.repo.DeleteQuestion(ctx, questionID)
}

// CreateSubject registers a subject. Subjects are not edited afterwards.
func (s *Service) CreateSubject(ctx context.Context, name string) (Subject, error) {
	name, err := requireText("subject name", name)
	if err != nil {
		return Subject{}, err
	}
	id, err := s.repo.InsertSubject(ctx, name)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Subject{}, fmt.Errorf("subject %q already exists: %w", name, ErrConflict)
		}
		return Subject{}, err
	}
	return Subject{ID: id, Name: name}, nil
}

func (s *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	return s.repo.ListSubjects(ctx)
}

func (s *Service) ListQuestions(ctx context.Context, subjectID int64) ([]QuestionSummary, error) {
	return s.repo.ListQuestions(ctx, subjectID)
}

func (s *Service) ListQuestionsWithAnswers(ctx context.Context, subjectID int64) ([]Question, error) {
	return s.repo.ListQuestionsWithAnswers(ctx, subjectID)
}

func (s *Service) GetQuestion(ctx context.Context, id int64) (Question, error) {
	return s.repo.GetQuestion(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) SubjectStats(ctx context.Context) ([]SubjectStats, error) {
	return s.repo.SubjectStats(ctx)
}

// record appends an audit event. The mutation has already committed, so a
// failure here is logged and not returned.
func (s *Service) record(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	ev, err := syncx.NewEvent(typ, key, data)
	if err == nil {
		err = s.events.Append(ctx, ev)
	}
	if err != nil {
		s.log.Warn("event append failed", "type", typ, "key", key, "error", err)
	}
}

func requireText(field, text string) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", fmt.Errorf("%s must not be empty: %w", field, ErrValidation)
	}
	return t, nil
}
