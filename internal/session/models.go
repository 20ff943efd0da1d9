package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/grading"
	"github.com/mind-engage/mindengage-qbank/internal/pool"
)

type Mode string

const (
	ModeDeferred Mode = "deferred"
	ModeInstant  Mode = "instant"
)

// ParseMode accepts the English names and the Spanish UI names "test"/"practica".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "deferred", "test":
		return ModeDeferred, nil
	case "instant", "practice", "practica":
		return ModeInstant, nil
	}
	return "", fmt.Errorf("mode %q: %w", s, bank.ErrValidation)
}

// Question is the session's frozen copy of a drawn question. The correct
// option stays server-side; clients only ever see a QuestionView.
type Question struct {
	ID              int64    `json:"id"`
	Number          string   `json:"number"`
	Text            string   `json:"text"`
	Options         []Option `json:"options"`
	CorrectOptionID int64    `json:"correctOptionId"`
}

type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

func (q Question) hasOption(id int64) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// freeze copies drawn questions keeping the pool's option order.
func freeze(qs []bank.Question) []Question {
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		fq := Question{ID: q.ID, Number: q.Number, Text: q.Text, Options: make([]Option, 0, len(q.Options))}
		for _, o := range q.Options {
			fq.Options = append(fq.Options, Option{ID: o.ID, Label: o.Label, Text: o.Text})
			if o.IsCorrect {
				fq.CorrectOptionID = o.ID
			}
		}
		out = append(out, fq)
	}
	return out
}

// Slot is a deferred-mode answer: Answered(optionID) or Unanswered.
type Slot struct {
	optionID int64
	answered bool
}

func Unanswered() Slot { return Slot{} }

func Answered(id int64) Slot { return Slot{optionID: id, answered: true} }

// Choice returns the chosen option id and whether there is one.
func (s Slot) Choice() (int64, bool) { return s.optionID, s.answered }

func (s Slot) MarshalJSON() ([]byte, error) {
	if !s.answered {
		return []byte("null"), nil
	}
	return json.Marshal(s.optionID)
}

func (s *Slot) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = Unanswered()
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*s = Answered(id)
	return nil
}

// Session is what the store persists between requests.
type Session struct {
	ID        string          `json:"id"`
	Mode      Mode            `json:"mode"`
	Scope     bank.Scope      `json:"scope"`
	Requested pool.Count      `json:"requested"`
	CreatedAt time.Time       `json:"createdAt"`
	Deferred  *Deferred       `json:"deferred,omitempty"`
	Instant   *Instant        `json:"instant,omitempty"`
	Report    *grading.Report `json:"report,omitempty"`
}

func newSession(id string, mode Mode, scope bank.Scope, count pool.Count, qs []bank.Question, now time.Time) *Session {
	s := &Session{ID: id, Mode: mode, Scope: scope, Requested: count, CreatedAt: now}
	switch mode {
	case ModeInstant:
		s.Instant = NewInstant(freeze(qs), now)
	default:
		s.Deferred = NewDeferred(freeze(qs), now)
	}
	return s
}

// Done reports whether the session reached its terminal state.
func (s *Session) Done() bool {
	switch {
	case s.Deferred != nil:
		return s.Deferred.Status == StatusSubmitted
	case s.Instant != nil:
		return s.Instant.State == StateFinished
	}
	return false
}

type OptionView struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type QuestionView struct {
	ID      int64        `json:"id"`
	Number  string       `json:"number"`
	Text    string       `json:"text"`
	Options []OptionView `json:"options"`
}

type Tally struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Accuracy  int `json:"accuracy"`
}

// View is the client's picture of a session. It carries the correct option
// only inside instant feedback and the final report.
type View struct {
	ID        string          `json:"id"`
	Mode      Mode            `json:"mode"`
	Status    string          `json:"status"`
	Index     int             `json:"index"`
	Total     int             `json:"total"`
	StartedAt time.Time       `json:"startedAt"`
	Question  *QuestionView   `json:"question,omitempty"`
	Selected  *int64          `json:"selectedOptionId,omitempty"`
	Answered  []bool          `json:"answered,omitempty"`
	Tally     *Tally          `json:"tally,omitempty"`
	Feedback  *Feedback       `json:"feedback,omitempty"`
	Report    *grading.Report `json:"report,omitempty"`
}

func viewOf(q Question) *QuestionView {
	v := &QuestionView{ID: q.ID, Number: q.Number, Text: q.Text, Options: make([]OptionView, 0, len(q.Options))}
	for _, o := range q.Options {
		v.Options = append(v.Options, OptionView(o))
	}
	return v
}

func (s *Session) View() View {
	v := View{ID: s.ID, Mode: s.Mode, StartedAt: s.CreatedAt, Report: s.Report}
	switch {
	case s.Deferred != nil:
		d := s.Deferred
		v.Status, v.Index, v.Total = string(d.Status), d.Cursor, len(d.Questions)
		v.Question = viewOf(d.Questions[d.Cursor])
		if id, ok := d.Slots[d.Cursor].Choice(); ok {
			v.Selected = &id
		}
		v.Answered = make([]bool, len(d.Slots))
		for i, sl := range d.Slots {
			_, v.Answered[i] = sl.Choice()
		}
	case s.Instant != nil:
		in := s.Instant
		v.Status, v.Index, v.Total = string(in.State), in.Cursor, len(in.Questions)
		if in.State != StateFinished {
			v.Question = viewOf(in.Questions[in.Cursor])
		}
		if in.State == StateFeedback {
			fb := *in.Last
			v.Feedback = &fb
		}
		v.Tally = &Tally{Correct: in.Correct, Incorrect: in.Incorrect, Accuracy: in.Accuracy()}
	}
	return v
}

func elapsed(from, to time.Time) int64 {
	if d := to.Sub(from); d > 0 {
		return int64(d / time.Second)
	}
	return 0
}
