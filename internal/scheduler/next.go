package scheduler

import (
	"fmt"
	"time"
)

// NextTime decides when an event fires next.
//
// previous is the occurrence that just fired, or the zero time when the
// event is being scheduled for the first time. The boolean is false when
// there is no further occurrence.
type NextTime interface {
	Next(now, previous time.Time) (time.Time, bool)
}

// NextTimeFunc adapts a function to NextTime.
type NextTimeFunc func(now, previous time.Time) (time.Time, bool)

// Next implements NextTime.
func (f NextTimeFunc) Next(now, previous time.Time) (time.Time, bool) { return f(now, previous) }

// Every fires at a fixed interval.
type Every time.Duration

// Next returns now for the first occurrence and previous plus the interval
// after that, regardless of how late the previous occurrence actually ran.
func (e Every) Next(now, previous time.Time) (time.Time, bool) {
	if previous.IsZero() {
		return now, true
	}
	return previous.Add(time.Duration(e)), true
}

func (e Every) String() string { return fmt.Sprintf("Every(%s)", time.Duration(e)) }

// EveryAfter fires at a fixed interval but catches up after a late run.
//
// Every keeps a strict cadence, so an occurrence that runs past its
// interval produces a next time already behind now and the scheduler
// drops the event. EveryAfter is for service loops that must keep
// running: when previous plus the interval has already passed, the next
// occurrence is now.
type EveryAfter time.Duration

// Next returns now for the first occurrence and the later of
// previous plus the interval and now after that.
func (e EveryAfter) Next(now, previous time.Time) (time.Time, bool) {
	if previous.IsZero() {
		return now, true
	}
	next := previous.Add(time.Duration(e))
	if next.Before(now) {
		return now, true
	}
	return next, true
}

func (e EveryAfter) String() string { return fmt.Sprintf("EveryAfter(%s)", time.Duration(e)) }

// DailyAt fires once a day at a wall-clock time in the location of now.
type DailyAt struct {
	Hour   int
	Minute int
}

// Next returns today's Hour:Minute if it is still ahead of now, otherwise
// tomorrow's.
func (d DailyAt) Next(now, _ time.Time) (time.Time, bool) {
	at := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, d.Minute, 0, 0, now.Location())
	if at.After(now) {
		return at, true
	}
	return at.AddDate(0, 0, 1), true
}

func (d DailyAt) String() string { return fmt.Sprintf("DailyAt(%02d:%02d)", d.Hour, d.Minute) }

// offsetTime shifts another NextTime by an offset.
type offsetTime struct {
	offset  func() time.Duration
	wrapped NextTime
	label   string
}

// TimeOffset shifts wrapped by a fixed offset: wrapped is evaluated at
// now-offset and the offset is added to its answer, so "30 minutes after
// sunset" is TimeOffset(30*time.Minute, SolarEvent(model, Sunset)).
func TimeOffset(offset time.Duration, wrapped NextTime) NextTime {
	return offsetTime{
		offset:  func() time.Duration { return offset },
		wrapped: wrapped,
		label:   offset.String(),
	}
}

// TimeOffsetFunc is TimeOffset with an offset recomputed on every
// scheduling.
func TimeOffsetFunc(offset func() time.Duration, wrapped NextTime) NextTime {
	return offsetTime{offset: offset, wrapped: wrapped, label: "func"}
}

// Next implements NextTime.
func (o offsetTime) Next(now, previous time.Time) (time.Time, bool) {
	delta := o.offset()
	t, ok := o.wrapped.Next(now.Add(-delta), previous)
	if !ok {
		return time.Time{}, false
	}
	return t.Add(delta), true
}

func (o offsetTime) String() string {
	return fmt.Sprintf("TimeOffset(%s, %v)", o.label, o.wrapped)
}

// SolarModel computes sunrise and sunset for the calendar day of t, in t's
// location.
type SolarModel interface {
	Sunrise(t time.Time) time.Time
	Sunset(t time.Time) time.Time
}

// SolarKind selects sunrise or sunset.
type SolarKind int

// Solar events.
const (
	Sunrise SolarKind = iota
	Sunset
)

func (k SolarKind) String() string {
	if k == Sunset {
		return "sunset"
	}
	return "sunrise"
}

// ParseSolarKind parses "sunrise" or "sunset".
func ParseSolarKind(s string) (SolarKind, error) {
	switch s {
	case "sunrise":
		return Sunrise, nil
	case "sunset":
		return Sunset, nil
	default:
		return 0, fmt.Errorf("unsupported solar event %q", s)
	}
}

type solarEvent struct {
	model SolarModel
	kind  SolarKind
}

// SolarEvent fires at the next sunrise or sunset after now.
func SolarEvent(model SolarModel, kind SolarKind) NextTime {
	return solarEvent{model: model, kind: kind}
}

// Next implements NextTime.
func (s solarEvent) Next(now, _ time.Time) (time.Time, bool) {
	if at := s.calc(now); at.After(now) {
		return at, true
	}
	return s.calc(now.AddDate(0, 0, 1)), true
}

func (s solarEvent) calc(t time.Time) time.Time {
	if s.kind == Sunset {
		return s.model.Sunset(t)
	}
	return s.model.Sunrise(t)
}

func (s solarEvent) String() string { return fmt.Sprintf("SolarEvent(%s)", s.kind) }
