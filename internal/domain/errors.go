package domain

import "errors"

// Lesson progress errors
var (
	ErrProgressNotFound = errors.New("lesson progress not found")
	// ErrPersistence wraps state-store write failures. Losing a completion
	// transition silently is worse than blocking it, so callers must see this.
	ErrPersistence = errors.New("persistence failure")
)

// Grading errors
var (
	// ErrCheckInFlight rejects a duplicate grading request while the first
	// run for the same submission is still executing.
	ErrCheckInFlight = errors.New("submission check already in flight")
)

// Attempt log errors
var (
	ErrAttemptNotFound = errors.New("attempt not found")
)

// Generation errors, recovered inside the generator and surfaced in logs only
var (
	ErrGenerationFailed  = errors.New("task generation failed")
	ErrMalformedResponse = errors.New("malformed model response")
)
