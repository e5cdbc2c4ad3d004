package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action is the work an event performs when it fires.
type Action func(ctx context.Context) error

// State is the lifecycle position of an Event.
type State int

// Event states.
const (
	Unscheduled State = iota
	Scheduled
	Firing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unscheduled:
		return "unscheduled"
	case Scheduled:
		return "scheduled"
	case Firing:
		return "firing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is an action paired with the rule that decides when it next fires.
type Event struct {
	id          string
	action      Action
	next        NextTime
	description string

	mu    sync.Mutex
	state State
	when  time.Time
}

// NewEvent creates an unscheduled event with a generated ID.
func NewEvent(action Action, next NextTime, description string) *Event {
	return &Event{
		id:          uuid.New().String(),
		action:      action,
		next:        next,
		description: description,
	}
}

// ID returns the event's unique identifier.
func (e *Event) ID() string { return e.id }

// Description returns the human-readable description.
func (e *Event) Description() string { return e.description }

// NextTime returns the event's timing rule.
func (e *Event) NextTime() NextTime { return e.next }

// State returns the current lifecycle state.
func (e *Event) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// When returns the time the event is queued or firing for. The boolean is
// false while the event is unscheduled.
func (e *Event) When() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Unscheduled {
		return time.Time{}, false
	}
	return e.when, true
}

// String implements fmt.Stringer.
func (e *Event) String() string {
	if e.description != "" {
		return e.description
	}
	return fmt.Sprintf("Event(%v)", e.next)
}

// claim moves the event to Scheduled at when. It fails if the event already
// has an outstanding occurrence.
func (e *Event) claim(when time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Unscheduled {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyScheduled, e, e.state)
	}
	e.state = Scheduled
	e.when = when
	return nil
}

func (e *Event) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}
