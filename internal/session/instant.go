package session

import (
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-qbank/internal/grading"
)

type State string

const (
	StateAwaitingAnswer State = "awaiting_answer"
	StateFeedback       State = "feedback"
	StateFinished       State = "finished"
)

type Event string

const (
	EventSelect      Event = "select"
	EventAdvance     Event = "advance"
	EventAdvanceLast Event = "advance_last"
)

type transition struct {
	from State
	on   Event
}

// Anything missing from this table is rejected with ErrTransition.
var transitions = map[transition]State{
	{StateAwaitingAnswer, EventSelect}: StateFeedback,
	{StateFeedback, EventAdvance}:      StateAwaitingAnswer,
	{StateFeedback, EventAdvanceLast}:  StateFinished,
}

type Feedback struct {
	Correct         bool  `json:"correct"`
	ChosenOptionID  int64 `json:"chosenOptionId"`
	CorrectOptionID int64 `json:"correctOptionId"`
}

// Instant is the practice mode: each answer is judged immediately and
// cannot be changed afterwards.
type Instant struct {
	Questions  []Question `json:"questions"`
	Cursor     int        `json:"cursor"`
	State      State      `json:"state"`
	Correct    int        `json:"correct"`
	Incorrect  int        `json:"incorrect"`
	Last       *Feedback  `json:"last,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func NewInstant(qs []Question, now time.Time) *Instant {
	return &Instant{Questions: qs, State: StateAwaitingAnswer, StartedAt: now}
}

func (in *Instant) next(ev Event) (State, error) {
	to, ok := transitions[transition{in.State, ev}]
	if !ok {
		return "", fmt.Errorf("%s in state %s: %w", ev, in.State, ErrTransition)
	}
	return to, nil
}

// Select judges optionID against the current question and moves to feedback.
func (in *Instant) Select(optionID int64) (Feedback, error) {
	to, err := in.next(EventSelect)
	if err != nil {
		return Feedback{}, err
	}
	q := in.Questions[in.Cursor]
	if !q.hasOption(optionID) {
		return Feedback{}, fmt.Errorf("question %d option %d: %w", q.ID, optionID, ErrUnknownOption)
	}
	fb := Feedback{
		Correct:         optionID == q.CorrectOptionID,
		ChosenOptionID:  optionID,
		CorrectOptionID: q.CorrectOptionID,
	}
	if fb.Correct {
		in.Correct++
	} else {
		in.Incorrect++
	}
	in.Last = &fb
	in.State = to
	return fb, nil
}

// Advance leaves feedback. On the last question it finishes the session and
// returns the result; otherwise the result is nil.
func (in *Instant) Advance(now time.Time) (*grading.InstantResult, error) {
	ev := EventAdvance
	if in.Cursor == len(in.Questions)-1 {
		ev = EventAdvanceLast
	}
	to, err := in.next(ev)
	if err != nil {
		return nil, err
	}
	in.State = to
	if to == StateFinished {
		in.FinishedAt = &now
		res := in.Result()
		return &res, nil
	}
	in.Cursor++
	in.Last = nil
	return nil, nil
}

func (in *Instant) Result() grading.InstantResult {
	end := time.Now()
	if in.FinishedAt != nil {
		end = *in.FinishedAt
	}
	return grading.InstantResult{
		Correct:   in.Correct,
		Incorrect: in.Incorrect,
		Total:     len(in.Questions),
		Elapsed:   elapsed(in.StartedAt, end),
	}
}

// Accuracy is the running share of correct answers so far.
func (in *Instant) Accuracy() int {
	return grading.Percentage(in.Correct, in.Correct+in.Incorrect)
}
