package grading

type Band string

const (
	BandExcellent        Band = "excellent"
	BandGood             Band = "good"
	BandFair             Band = "fair"
	BandNeedsImprovement Band = "needs_improvement"
)

// bands are checked top-down; lower edges are inclusive.
var bands = []struct {
	min  int
	band Band
}{
	{90, BandExcellent},
	{70, BandGood},
	{50, BandFair},
}

func BandFor(percentage int) Band {
	for _, b := range bands {
		if percentage >= b.min {
			return b.band
		}
	}
	return BandNeedsImprovement
}

var messages = map[Band]string{
	BandExcellent:        "Outstanding! You have shown an exceptional command of the subject. Keep it up.",
	BandGood:             "Well done! You have a solid base. A little more practice and you will reach excellence.",
	BandFair:             "You are on the right track. Every mistake is a chance to learn: review the topics and try again.",
	BandNeedsImprovement: "Don't get discouraged. Review the topics, study with dedication and try again.",
}

// Message is the encouragement shown with the band on the results screen.
func (b Band) Message() string { return messages[b] }

func (b Band) String() string { return string(b) }
