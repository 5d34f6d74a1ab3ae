package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid request")
	ErrUnknownModule       = errors.New("unknown module")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrStaleTimestamp      = errors.New("stale timestamp")
	ErrTerminalJob         = errors.New("unknown or terminal job")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrProviderFailure     = errors.New("provider failure")
)
