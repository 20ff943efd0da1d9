package bank

import (
	"sort"
	"strconv"
)

type Subject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type AnswerOption struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	Label      string `json:"label"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
}

type Question struct {
	ID        int64          `json:"id"`
	SubjectID int64          `json:"subjectId"`
	Number    string         `json:"number"`
	Text      string         `json:"text"`
	Options   []AnswerOption `json:"options,omitempty"`
}

// CorrectOption returns the option flagged correct, if any.
func (q Question) CorrectOption() (AnswerOption, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return AnswerOption{}, false
}

// Eligible reports whether exactly one option is flagged correct.
func (q Question) Eligible() bool {
	n := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			n++
		}
	}
	return n == 1
}

// Option looks up an option by id.
func (q Question) Option(id int64) (AnswerOption, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return AnswerOption{}, false
}

// QuestionSummary is the list row for a subject: the question without its
// options plus how many it has.
type QuestionSummary struct {
	Question
	TotalAnswers int  `json:"totalAnswers"`
	HasCorrect   bool `json:"hasCorrect"`
}

// Scope selects questions from every subject (SubjectID == 0) or one subject.
type Scope struct {
	SubjectID int64
}

var AllSubjects = Scope{}

func SubjectScope(id int64) Scope { return Scope{SubjectID: id} }

func (s Scope) All() bool { return s.SubjectID == 0 }

func (s Scope) String() string {
	if s.All() {
		return "all"
	}
	return strconv.FormatInt(s.SubjectID, 10)
}

func (s Scope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Scope) UnmarshalText(b []byte) error {
	if string(b) == "all" || len(b) == 0 {
		*s = AllSubjects
		return nil
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*s = SubjectScope(id)
	return nil
}

type Stats struct {
	TotalSubjects      int `json:"totalSubjects"`
	TotalQuestions     int `json:"totalQuestions"`
	MarkedQuestions    int `json:"markedQuestions"`
	UncertainQuestions int `json:"uncertainQuestions"`
}

type SubjectStats struct {
	Subject
	Total            int `json:"totalQuestions"`
	Marked           int `json:"marked"`
	Uncertain        int `json:"uncertain"`
	MarkedPercentage int `json:"markedPercentage"`
}

// sortByNumber orders questions by their numeric display number; numbers that
// do not parse sort after the numeric ones, lexically.
func sortByNumber[T any](items []T, number func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := number(items[i]), number(items[j])
		na, errA := strconv.Atoi(a)
		nb, errB := strconv.Atoi(b)
		switch {
		case errA == nil && errB == nil:
			return na < nb
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return a < b
		}
	})
}

// nextNumber returns one past the largest numeric display number.
func nextNumber(numbers []string) string {
	max := 0
	for _, n := range numbers {
		if v, err := strconv.Atoi(n); err == nil && v > max {
			max = v
		}
	}
	return strconv.Itoa(max + 1)
}
