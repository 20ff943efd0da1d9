package bank

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	// ErrIntegrityViolation means the store rejected the correctness
	// transaction. It points at an isolation bug, not at user input.
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrStore              = errors.New("store error")
)
