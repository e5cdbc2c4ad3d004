// Package scheduler fires time-based actions: periodic polling, heartbeats,
// daily and sunrise/sunset-relative triggers.
//
// A Scheduler owns a queue of events ordered by due time and a single
// consumer goroutine (Run) that executes due actions one at a time. Any
// goroutine may add events; an insert that is due earlier than the event the
// consumer is sleeping towards wakes it immediately.
//
// # Rescheduling
//
// After an action succeeds, the event's NextTime is asked for the following
// occurrence, given the occurrence that just fired. An action that returns
// an error, or whose NextTime reports no further occurrence, leaves the event
// unscheduled. A next time before the current time is logged as a warning
// and dropped.
//
// # Usage
//
//	sched := scheduler.New(scheduler.Options{Logger: logger})
//	sched.Add(scheduler.NewEvent(poll, scheduler.Every(time.Minute), "poll devices"))
//	go sched.Run(ctx)
package scheduler
