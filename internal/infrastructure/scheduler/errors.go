package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrRunInProgress is returned when a triggered run overlaps a running one
	ErrRunInProgress = errors.New("sync run already in progress")
)
