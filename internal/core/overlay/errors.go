package overlay

import "errors"

var (
	// ErrInvalidUsage is returned for configurations that can never work,
	// such as an OnAdded callback without a map host to attach to.
	ErrInvalidUsage = errors.New("overlay: invalid usage")

	// ErrInvalidState is returned when an operation needs state that has not
	// been set yet.
	ErrInvalidState = errors.New("overlay: invalid state")
)
