package model

import "errors"

// Common errors used across the application
var (
	// Store errors
	ErrRoomNotFound     = errors.New("room not found")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Lifecycle errors
	ErrNotHost             = errors.New("player is not the host")
	ErrRoundAlreadyStarted = errors.New("round already started")
	ErrRoundNotStarted     = errors.New("round has not started")

	// Content errors
	ErrContentUnavailable = errors.New("trivia content unavailable")

	// Identity errors
	ErrIdentityUnavailable = errors.New("identity unavailable")
)
