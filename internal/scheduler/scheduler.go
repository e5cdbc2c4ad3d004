package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultEmptyQueueWait bounds how long Run sleeps with nothing queued.
const DefaultEmptyQueueWait = 5 * time.Minute

// TimeFormat renders scheduled times in log entries.
const TimeFormat = "2006-01-02_15:04:05_MST"

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Operation names a scheduler lifecycle step.
type Operation string

// Scheduler operations, reported to the log and the Listener.
const (
	OpStarted       Operation = "scheduler_started"
	OpScheduled     Operation = "event_scheduled"
	OpAction        Operation = "event_action"
	OpDone          Operation = "scheduled_action_done"
	OpFailed        Operation = "scheduled_action_failed"
	OpNextBeforeNow Operation = "scheduled_next_before_now"
)

// Record describes one scheduler operation.
type Record struct {
	Operation   Operation
	EventID     string
	Description string
	When        time.Time
	Timestamp   time.Time
	Duration    time.Duration
	Err         error
}

// Listener receives every scheduler operation. It is called synchronously
// from the goroutine performing the operation and must not block.
type Listener interface {
	ObserveSchedule(rec Record)
}

// Options configures a Scheduler.
type Options struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Logger receives operation logs.
	Logger Logger

	// EmptyQueueWait bounds the sleep when nothing is queued.
	EmptyQueueWait time.Duration

	// Listener, when set, receives every operation record.
	Listener Listener
}

// Entry is a queued occurrence as shown by Snapshot.
type Entry struct {
	When        time.Time `json:"when"`
	EventID     string    `json:"event_id"`
	Description string    `json:"description"`
}

// Scheduler runs events at their due times on a single goroutine.
type Scheduler struct {
	mu    sync.Mutex
	queue eventQueue
	seq   uint64

	wake    chan struct{}
	running atomic.Bool

	now       func() time.Time
	logger    Logger
	emptyWait time.Duration
	listener  Listener
}

// New creates a scheduler. Events may be added before Run starts.
func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.EmptyQueueWait <= 0 {
		opts.EmptyQueueWait = DefaultEmptyQueueWait
	}
	return &Scheduler{
		wake:      make(chan struct{}, 1),
		now:       opts.Clock,
		logger:    opts.Logger,
		emptyWait: opts.EmptyQueueWait,
		listener:  opts.Listener,
	}
}

// Schedule queues ev to fire at when. It is safe to call from any goroutine
// and wakes Run if when is earlier than what it is waiting for.
func (s *Scheduler) Schedule(when time.Time, ev *Event) error {
	if err := ev.claim(when); err != nil {
		return err
	}

	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, &entry{when: when, seq: s.seq, event: ev})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	s.report(OpScheduled, ev, when, 0, nil)
	return nil
}

// Add computes ev's first occurrence and queues it.
func (s *Scheduler) Add(ev *Event) error {
	now := s.now()
	when, ok := ev.next.Next(now, time.Time{})
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoNextTime, ev)
	}
	if when.Before(now) {
		s.report(OpNextBeforeNow, ev, when, 0, nil)
		return fmt.Errorf("%w: %s at %s", ErrNextBeforeNow, ev, when.Format(TimeFormat))
	}
	return s.Schedule(when, ev)
}

// Len returns the number of queued occurrences.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Snapshot returns the queued occurrences in firing order.
func (s *Scheduler) Snapshot() []Entry {
	s.mu.Lock()
	ordered := make(eventQueue, len(s.queue))
	copy(ordered, s.queue)
	s.mu.Unlock()

	entries := make([]Entry, 0, len(ordered))
	for ordered.Len() > 0 {
		e := heap.Pop(&ordered).(*entry) //nolint:forcetypeassert // heap contract
		entries = append(entries, Entry{When: e.when, EventID: e.event.id, Description: e.event.String()})
	}
	return entries
}

// Run consumes the queue until ctx is cancelled. Actions run one at a time
// on the calling goroutine. Only one Run may be active at a time.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.report(OpStarted, nil, time.Time{}, 0, nil)

	timer := time.NewTimer(s.emptyWait)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		due, wait := s.popDue()
		if due != nil {
			s.fire(ctx, due.event, due.when)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// popDue removes and returns the earliest entry if it is due. Otherwise it
// returns how long to wait.
func (s *Scheduler) popDue() (*entry, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, s.emptyWait
	}
	now := s.now()
	top := s.queue[0]
	if top.when.After(now) {
		return nil, top.when.Sub(now)
	}
	heap.Pop(&s.queue)
	return top, 0
}

// fire runs one occurrence and reschedules on success.
func (s *Scheduler) fire(ctx context.Context, ev *Event, when time.Time) {
	ev.setState(Firing)
	s.report(OpAction, ev, when, 0, nil)

	start := s.now()
	err := runAction(ctx, ev.action)
	elapsed := s.now().Sub(start)

	if err != nil {
		ev.setState(Unscheduled)
		s.report(OpFailed, ev, when, elapsed, err)
		return
	}
	s.reschedule(ev, when)
	s.report(OpDone, ev, when, elapsed, nil)
}

// reschedule queues the occurrence after previous, if any.
func (s *Scheduler) reschedule(ev *Event, previous time.Time) {
	now := s.now()
	next, ok := ev.next.Next(now, previous)
	ev.setState(Unscheduled)
	if !ok {
		s.logger.Debug("event has no further occurrence", "event", ev.String(), "event_id", ev.id)
		return
	}
	if next.Before(now) {
		s.report(OpNextBeforeNow, ev, next, 0, nil)
		return
	}
	if err := s.Schedule(next, ev); err != nil {
		s.logger.Error("rescheduling event", "event", ev.String(), "error", err)
	}
}

// runAction calls action, converting a panic into an error.
func runAction(ctx context.Context, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanicked, r)
		}
	}()
	return action(ctx)
}

// report logs an operation at its level and forwards it to the listener.
func (s *Scheduler) report(op Operation, ev *Event, when time.Time, elapsed time.Duration, err error) {
	rec := Record{Operation: op, When: when, Timestamp: s.now(), Duration: elapsed, Err: err}
	args := []any{"operation", string(op)}
	if ev != nil {
		rec.EventID = ev.id
		rec.Description = ev.String()
		args = append(args, "event", rec.Description, "event_id", ev.id)
	}
	if !when.IsZero() {
		args = append(args, "scheduled_at", when.Format(TimeFormat))
	}

	switch op {
	case OpStarted:
		s.logger.Info("scheduler started", args...)
	case OpScheduled:
		s.logger.Info("event scheduled", args...)
	case OpAction:
		s.logger.Info("event action", args...)
	case OpDone:
		s.logger.Info("scheduled action done", append(args, "duration", elapsed)...)
	case OpFailed:
		s.logger.Error("scheduled action failed", append(args, "duration", elapsed, "error", err)...)
	case OpNextBeforeNow:
		s.logger.Warn("scheduled next before now", args...)
	}

	if s.listener != nil {
		s.listener.ObserveSchedule(rec)
	}
}
