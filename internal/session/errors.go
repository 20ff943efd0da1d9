package session

import "errors"

var (
	// ErrNoExamPossible means the scope has no question with a correct answer.
	ErrNoExamPossible  = errors.New("no exam possible")
	ErrSessionClosed   = errors.New("session closed")
	ErrTransition      = errors.New("transition not allowed")
	ErrUnknownOption   = errors.New("unknown question or option")
	ErrOutOfRange      = errors.New("index out of range")
	ErrLeaseHeld       = errors.New("session is being modified by another request")
	ErrBadLease        = errors.New("invalid session lease")
	ErrSessionNotFound = errors.New("session not found")
)
