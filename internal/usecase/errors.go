package usecase

import "errors"

var (
	// ErrAttemptNotFound is returned for unknown or expired attempt ids.
	ErrAttemptNotFound = errors.New("attempt not found")

	// ErrInvalidPredictions is returned when a scoring request holds a
	// probability outside [0,1].
	ErrInvalidPredictions = errors.New("invalid predictions")
)
