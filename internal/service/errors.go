package service

import "errors"

// Common service errors
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// User service specific errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
)

// Matchmaking queue specific errors
var (
	ErrAlreadyQueued   = errors.New("player already queued")
	ErrAlreadyInBattle = errors.New("player already in battle")
)

// Battle session specific errors
var (
	ErrBattleNotFound         = errors.New("battle not found")
	ErrDuplicateSubmission    = errors.New("duplicate submission")
	ErrBattleAlreadyFinalized = errors.New("battle already finalized")
	ErrNotAParticipant        = errors.New("player is not part of this battle")
)
