package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLockHeld       = errors.New("lock already held")
	ErrAlreadySettled = errors.New("proposal already settled")
	ErrInvalidWinner  = errors.New("winner is not a market participant")
	ErrInvalidStatus  = errors.New("invalid settlement status")
)
