package pool

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
)

// ParseScope accepts "", "all", "todas" or a positive subject id.
func ParseScope(s string) (bank.Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "todas":
		return bank.AllSubjects, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return bank.Scope{}, fmt.Errorf("scope %q: %w", s, bank.ErrValidation)
	}
	return bank.SubjectScope(id), nil
}

// Count is how many questions an exam asks for: a positive number, or every
// eligible question in scope.
type Count struct {
	n   int
	all bool
}

var AllEligible = Count{all: true}

func N(n int) Count { return Count{n: n} }

// ParseCount accepts "all", "todas" or a positive integer. An empty string
// yields def.
func ParseCount(s string, def int) (Count, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		if def <= 0 {
			return AllEligible, nil
		}
		return N(def), nil
	case "all", "todas":
		return AllEligible, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return Count{}, fmt.Errorf("count %q must be a positive number or \"all\": %w", s, bank.ErrValidation)
	}
	return N(n), nil
}

// Resolve caps the request at what is available.
func (c Count) Resolve(eligible int) int {
	if c.all || c.n > eligible {
		return eligible
	}
	return c.n
}

func (c Count) String() string {
	if c.all {
		return "all"
	}
	return strconv.Itoa(c.n)
}

func (c Count) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Count) UnmarshalText(b []byte) error {
	v, err := ParseCount(string(b), 0)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
