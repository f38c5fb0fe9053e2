package store

import "errors"

var (
	// ErrNotFound means no schedule exists with the given id.
	ErrNotFound = errors.New("schedule not found")
	// ErrNotPending means a mutation was attempted on a row that already
	// reached a terminal state.
	ErrNotPending = errors.New("schedule is not pending")
	// ErrScheduledTimeNotFuture rejects creating or moving a schedule to an
	// instant that is not strictly in the future.
	ErrScheduledTimeNotFuture = errors.New("scheduled time must be in the future")
)
