package models

import "errors"

// Domain error taxonomy. Every command either fully commits or fails
// with one of these; handlers map them to HTTP statuses.
var (
	ErrInvalidCardParams   = errors.New("invalid card parameters")
	ErrUserNotFound        = errors.New("user not found")
	ErrCardNotFound        = errors.New("card not found")
	ErrSelfInvite          = errors.New("creator cannot invite themselves")
	ErrAlreadyInvited      = errors.New("user already invited")
	ErrRosterFull          = errors.New("card roster is full")
	ErrNoSuchInvitation    = errors.New("no pending invitation for user")
	ErrAlreadyPaid         = errors.New("participant already paid")
	ErrWrongStatus         = errors.New("operation not allowed in current card status")
	ErrInsufficientFunds   = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNotCreator          = errors.New("only the card creator may invite")
	ErrConcurrencyConflict = errors.New("concurrent update detected, retry")
)
