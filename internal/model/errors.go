package model

import "errors"

// Business-rule failures. They are surfaced to callers as-is and never
// retried.
var (
	ErrNotFound            = errors.New("rewards: not found")
	ErrInvalidState        = errors.New("rewards: invalid state for operation")
	ErrInvalidArgument     = errors.New("rewards: invalid argument")
	ErrInsufficientFunds   = errors.New("rewards: insufficient funds")
	ErrInsufficientChances = errors.New("rewards: insufficient chances")
	ErrDuplicateEntry      = errors.New("rewards: duplicate entry")
	ErrLotteryFull         = errors.New("rewards: lottery is full")
	ErrNoPrizesConfigured  = errors.New("rewards: no prizes configured")
	ErrNoTargetSet         = errors.New("rewards: no target set")
)
