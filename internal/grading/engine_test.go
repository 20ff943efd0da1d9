package grading

import (
	"reflect"
	"testing"
)

func TestBandFor(t *testing.T) {
	cases := []struct {
		pct  int
		want Band
	}{
		{100, BandExcellent},
		{90, BandExcellent},
		{89, BandGood},
		{70, BandGood},
		{69, BandFair},
		{50, BandFair},
		{49, BandNeedsImprovement},
		{0, BandNeedsImprovement},
	}
	for _, tc := range cases {
		if got := BandFor(tc.pct); got != tc.want {
			t.Errorf("BandFor(%d) = %s, want %s", tc.pct, got, tc.want)
		}
		if tc.want.Message() == "" {
			t.Errorf("band %s has no message", tc.want)
		}
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct{ c, n, want int }{
		{7, 10, 70},
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{5, 5, 100},
	}
	for _, tc := range cases {
		if got := Percentage(tc.c, tc.n); got != tc.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tc.c, tc.n, got, tc.want)
		}
	}
}

func TestGradeInstantSevenOfTen(t *testing.T) {
	rep := Grade(InstantResult{Correct: 7, Incorrect: 3, Total: 10, Elapsed: 95})
	if rep.Percentage != 70 || rep.Band != BandGood {
		t.Fatalf("report = %+v", rep)
	}
	if rep.IncorrectCount != 3 || rep.ElapsedSeconds != 95 || rep.Breakdown != nil {
		t.Errorf("report = %+v", rep)
	}
	if rep.Message != BandGood.Message() {
		t.Errorf("message = %q", rep.Message)
	}
}

func TestGradeEmptyAttempt(t *testing.T) {
	rep := Grade(DeferredResult{})
	if rep.Percentage != 0 || rep.TotalCount != 0 || rep.Band != BandNeedsImprovement {
		t.Fatalf("report = %+v", rep)
	}
}

func TestGradeDeferredBreakdown(t *testing.T) {
	res := DeferredResult{
		Items: []Item{
			{QuestionID: 1, Answered: true, ChosenOptionID: 11, CorrectOptionID: 11},
			{QuestionID: 2, Answered: true, ChosenOptionID: 21, CorrectOptionID: 22},
			{QuestionID: 3, CorrectOptionID: 31},
		},
		Elapsed: 40,
	}
	rep := Grade(res)
	if rep.CorrectCount != 1 || rep.IncorrectCount != 2 || rep.Percentage != 33 || rep.Band != BandNeedsImprovement {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.Breakdown) != 3 {
		t.Fatalf("breakdown = %+v", rep.Breakdown)
	}
	if rep.Breakdown[2].ChosenOptionID != nil || rep.Breakdown[2].Match {
		t.Errorf("unanswered row = %+v", rep.Breakdown[2])
	}
	if c := rep.Breakdown[1].ChosenOptionID; c == nil || *c != 21 {
		t.Errorf("answered row = %+v", rep.Breakdown[1])
	}
	matches := 0
	for _, r := range rep.Breakdown {
		if r.Match {
			matches++
		}
	}
	if matches != rep.CorrectCount {
		t.Errorf("breakdown matches %d, score %d", matches, rep.CorrectCount)
	}

	if again := Grade(res); !reflect.DeepEqual(again, rep) {
		t.Error("grading is not deterministic")
	}
}
