package errors

import "errors"

var (
	ErrAlreadyExists       = errors.New("already exists")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidTransition   = errors.New("invalid withdrawal status transition")
	ErrStaleTransition     = errors.New("withdrawal status changed concurrently")
)
