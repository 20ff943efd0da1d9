package session

import (
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-qbank/internal/grading"
)

type DeferredStatus string

const (
	StatusInProgress DeferredStatus = "in_progress"
	StatusSubmitted  DeferredStatus = "submitted"
)

// Deferred is the test mode: answer freely in any order, see the outcome
// only after submitting.
type Deferred struct {
	Questions   []Question     `json:"questions"`
	Slots       []Slot         `json:"slots"`
	Cursor      int            `json:"cursor"`
	Status      DeferredStatus `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
}

func NewDeferred(qs []Question, now time.Time) *Deferred {
	return &Deferred{
		Questions: qs,
		Slots:     make([]Slot, len(qs)),
		Status:    StatusInProgress,
		StartedAt: now,
	}
}

func (d *Deferred) open() error {
	if d.Status != StatusInProgress {
		return fmt.Errorf("deferred session already submitted: %w", ErrSessionClosed)
	}
	return nil
}

// Goto moves the cursor to question i.
func (d *Deferred) Goto(i int) error {
	if err := d.open(); err != nil {
		return err
	}
	if i < 0 || i >= len(d.Questions) {
		return fmt.Errorf("question index %d of %d: %w", i, len(d.Questions), ErrOutOfRange)
	}
	d.Cursor = i
	return nil
}

func (d *Deferred) Next() error { return d.Goto(d.Cursor + 1) }

func (d *Deferred) Prev() error { return d.Goto(d.Cursor - 1) }

func (d *Deferred) index(questionID int64) (int, bool) {
	for i, q := range d.Questions {
		if q.ID == questionID {
			return i, true
		}
	}
	return 0, false
}

// Choose records optionID for questionID, replacing any earlier choice.
func (d *Deferred) Choose(questionID, optionID int64) error {
	if err := d.open(); err != nil {
		return err
	}
	i, ok := d.index(questionID)
	if !ok || !d.Questions[i].hasOption(optionID) {
		return fmt.Errorf("question %d option %d: %w", questionID, optionID, ErrUnknownOption)
	}
	d.Slots[i] = Answered(optionID)
	return nil
}

// Clear resets a question to unanswered.
func (d *Deferred) Clear(questionID int64) error {
	if err := d.open(); err != nil {
		return err
	}
	i, ok := d.index(questionID)
	if !ok {
		return fmt.Errorf("question %d: %w", questionID, ErrUnknownOption)
	}
	d.Slots[i] = Unanswered()
	return nil
}

// Submit freezes the slots. It can happen once.
func (d *Deferred) Submit(now time.Time) (grading.DeferredResult, error) {
	if err := d.open(); err != nil {
		return grading.DeferredResult{}, err
	}
	d.Status = StatusSubmitted
	d.SubmittedAt = &now
	return d.Result(), nil
}

// Result is the gradeable snapshot of the slots.
func (d *Deferred) Result() grading.DeferredResult {
	items := make([]grading.Item, len(d.Questions))
	for i, q := range d.Questions {
		chosen, answered := d.Slots[i].Choice()
		items[i] = grading.Item{
			QuestionID:      q.ID,
			ChosenOptionID:  chosen,
			Answered:        answered,
			CorrectOptionID: q.CorrectOptionID,
		}
	}
	end := time.Now()
	if d.SubmittedAt != nil {
		end = *d.SubmittedAt
	}
	return grading.DeferredResult{Items: items, Elapsed: elapsed(d.StartedAt, end)}
}
