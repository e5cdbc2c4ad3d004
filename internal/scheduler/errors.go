package scheduler

import "errors"

// Domain errors for the scheduler package.
var (
	// ErrAlreadyScheduled is returned when an event that is queued or firing
	// is scheduled again.
	ErrAlreadyScheduled = errors.New("scheduler: event already scheduled")

	// ErrAlreadyRunning is returned when Run is called while another Run is
	// active.
	ErrAlreadyRunning = errors.New("scheduler: already running")

	// ErrNoNextTime is returned by Add when the event's NextTime reports no
	// occurrence.
	ErrNoNextTime = errors.New("scheduler: no next time")

	// ErrNextBeforeNow is returned by Add when the event's first occurrence
	// is already in the past.
	ErrNextBeforeNow = errors.New("scheduler: next time before now")

	// ErrActionPanicked wraps a panic recovered from an action.
	ErrActionPanicked = errors.New("scheduler: action panicked")
)
