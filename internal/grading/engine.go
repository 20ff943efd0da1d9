package grading

import "math"

// Result is a completed attempt, ready to be scored. Deferred attempts are
// scored from their breakdown rows, instant attempts from their tally.
type Result interface {
	score() (correct, total int, rows []Row)
	elapsedSeconds() int64
}

// Item is one question of a deferred attempt as it stood at submit time.
type Item struct {
	QuestionID      int64
	ChosenOptionID  int64
	Answered        bool
	CorrectOptionID int64
}

// Match reports whether the learner picked the correct option. Unanswered
// items never match.
func Match(it Item) bool {
	return it.Answered && it.ChosenOptionID == it.CorrectOptionID
}

// Row is a per-question line of the deferred breakdown.
type Row struct {
	QuestionID      int64  `json:"questionId"`
	ChosenOptionID  *int64 `json:"chosenOptionId"` // nil when unanswered
	CorrectOptionID int64  `json:"correctOptionId"`
	Match           bool   `json:"match"`
}

type DeferredResult struct {
	Items   []Item
	Elapsed int64 // seconds
}

func (r DeferredResult) score() (int, int, []Row) {
	rows := make([]Row, 0, len(r.Items))
	correct := 0
	for _, it := range r.Items {
		row := Row{QuestionID: it.QuestionID, CorrectOptionID: it.CorrectOptionID, Match: Match(it)}
		if it.Answered {
			chosen := it.ChosenOptionID
			row.ChosenOptionID = &chosen
		}
		if row.Match {
			correct++
		}
		rows = append(rows, row)
	}
	return correct, len(r.Items), rows
}

func (r DeferredResult) elapsedSeconds() int64 { return r.Elapsed }

type InstantResult struct {
	Correct   int
	Incorrect int
	Total     int
	Elapsed   int64 // seconds
}

func (r InstantResult) score() (int, int, []Row) { return r.Correct, r.Total, nil }

func (r InstantResult) elapsedSeconds() int64 { return r.Elapsed }

// Report is what the learner sees after finishing an attempt.
type Report struct {
	CorrectCount   int    `json:"correctCount"`
	IncorrectCount int    `json:"incorrectCount"`
	TotalCount     int    `json:"totalCount"`
	Percentage     int    `json:"percentage"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
	Band           Band   `json:"band"`
	Message        string `json:"message"`
	Breakdown      []Row  `json:"breakdown,omitempty"`
}

// Grade is deterministic: the same result always yields the same report.
func Grade(r Result) Report {
	correct, total, rows := r.score()
	pct := Percentage(correct, total)
	band := BandFor(pct)
	incorrect := total - correct
	if ir, ok := r.(InstantResult); ok {
		incorrect = ir.Incorrect
	}
	return Report{
		CorrectCount:   correct,
		IncorrectCount: incorrect,
		TotalCount:     total,
		Percentage:     pct,
		ElapsedSeconds: r.elapsedSeconds(),
		Band:           band,
		Message:        band.Message(),
		Breakdown:      rows,
	}
}

// Percentage is round(correct/total*100), or 0 for an empty attempt.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
