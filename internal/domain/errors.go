package domain

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
	ErrNoEstimate  = errors.New("forecaster returned no estimate")
)
