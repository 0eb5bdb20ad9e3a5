package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources (jobs, nodes).
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPrecondition marks a workflow transition whose gate is unmet.
	// Handlers map it to 409; the operation mutates nothing when it fires.
	ErrPrecondition = errors.New("precondition failed")
)
