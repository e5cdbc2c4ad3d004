package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
)

var noonUTC = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixedSolar puts sunrise at 06:00 and sunset at 18:00 UTC every day.
type fixedSolar struct{}

func (fixedSolar) Sunrise(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 6, 0, 0, 0, time.UTC)
}

func (fixedSolar) Sunset(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 18, 0, 0, 0, time.UTC)
}

type fakeScheduler struct {
	events []*scheduler.Event
	err    error
}

func (f *fakeScheduler) Add(ev *scheduler.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

// capture records every message an engine turns into an action.
type capture struct{ msgs []codec.Message }

func (c *capture) action(msg codec.Message) scheduler.Action {
	c.msgs = append(c.msgs, msg)
	return func(context.Context) error { return nil }
}

func newTestEngine(rules ...Rule) (*Engine, *fakeScheduler, *capture, error) {
	reg := NewRegistry()
	for _, r := range rules {
		if _, err := reg.Add(r); err != nil {
			return nil, nil, nil, err
		}
	}
	sched := &fakeScheduler{}
	c := &capture{}
	e := NewEngine(reg, sched, EngineOptions{Action: c.action, Solar: fixedSolar{}, Location: time.UTC})
	return e, sched, c, nil
}

func TestEngineBuildTimes(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want time.Time
	}{
		{
			name: "sunset today",
			rule: Rule{ID: "r", At: "sunset", Command: CommandOn, Target: "aa.bb.cc"},
			want: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		},
		{
			name: "sunset with negative offset",
			rule: Rule{ID: "r", At: "sunset", Offset: -15 * time.Minute, Command: CommandOn, Target: "aa.bb.cc"},
			want: time.Date(2026, 3, 1, 17, 45, 0, 0, time.UTC),
		},
		{
			name: "sunrise already passed",
			rule: Rule{ID: "r", At: "sunrise", Command: CommandOff, Target: "aa.bb.cc"},
			want: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
		},
		{
			name: "wall clock later today",
			rule: Rule{ID: "r", At: "22:30", Command: CommandGroupOff, Target: "group-1"},
			want: time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC),
		},
		{
			name: "wall clock tomorrow",
			rule: Rule{ID: "r", At: "07:30", Command: CommandBeep, Target: "aa.bb.cc"},
			want: time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _, err := newTestEngine()
			if err != nil {
				t.Fatal(err)
			}
			ev, err := e.Build(tt.rule)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			got, ok := ev.NextTime().Next(noonUTC, time.Time{})
			if !ok || !got.Equal(tt.want) {
				t.Errorf("Next() = %v, %v; want %v", got, ok, tt.want)
			}
		})
	}
}

func TestEngineWallClockUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	e := NewEngine(NewRegistry(), &fakeScheduler{}, EngineOptions{Action: (&capture{}).action, Location: tokyo})
	ev, err := e.Build(Rule{ID: "r", At: "07:00", Command: CommandOn, Target: "aa.bb.cc"})
	if err != nil {
		t.Fatal(err)
	}
	// 12:00 UTC is 21:00 in Tokyo, so the next 07:00 there is 22:00 UTC.
	got, _ := ev.NextTime().Next(noonUTC, time.Time{})
	if want := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

func TestEngineBuildMessages(t *testing.T) {
	lamp := codec.Address{0xaa, 0xbb, 0xcc}
	tests := []struct {
		rule  Rule
		shape *codec.Composite
		cmd   codec.Tag
		cmd2  byte
	}{
		{Rule{ID: "on", At: "07:00", Command: CommandOn, Target: "aa.bb.cc"}, plm.SendMessage, plm.OnCmd, plm.FullOn},
		{Rule{ID: "off", At: "07:00", Command: CommandOff, Target: "aa.bb.cc"}, plm.SendMessage, plm.OffCmd, 0},
		{Rule{ID: "beep", At: "07:00", Command: CommandBeep, Target: "aa.bb.cc"}, plm.SendMessage, plm.BeepCmd, 0},
		{Rule{ID: "gon", At: "07:00", Command: CommandGroupOn, Target: "group-3"}, plm.SendAllLink, plm.OnCmd, 0},
		{Rule{ID: "goff", At: "07:00", Command: CommandGroupOff, Target: "group-3"}, plm.SendAllLink, plm.OffCmd, 0},
	}
	for _, tt := range tests {
		t.Run(tt.rule.ID, func(t *testing.T) {
			e, _, c, err := newTestEngine()
			if err != nil {
				t.Fatal(err)
			}
			if _, err := e.Build(tt.rule); err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if len(c.msgs) != 1 {
				t.Fatalf("actions built = %d", len(c.msgs))
			}
			m := c.msgs[0]
			if !m.Is(tt.shape) || m.Tag("command") != tt.cmd || m.Byte("command2") != tt.cmd2 {
				t.Errorf("message = %s", m)
			}
			if tt.shape == plm.SendMessage && m.Address("to") != lamp {
				t.Errorf("to = %s", m.Address("to"))
			}
			if tt.shape == plm.SendAllLink && m.Byte("group") != 3 {
				t.Errorf("group = %d", m.Byte("group"))
			}
		})
	}
}

func TestEngineScheduleAll(t *testing.T) {
	e, sched, _, err := newTestEngine(
		Rule{ID: "a", At: "sunset", Command: CommandOn, Target: "aa.bb.cc"},
		Rule{ID: "b", At: "06:15", Command: CommandOff, Target: "aa.bb.cc"},
	)
	if err != nil {
		t.Fatal(err)
	}
	n, err := e.ScheduleAll()
	if err != nil || n != 2 {
		t.Fatalf("ScheduleAll() = %d, %v", n, err)
	}
	if len(sched.events) != 2 {
		t.Fatalf("events added = %d", len(sched.events))
	}
	if ev, ok := e.Event("a"); !ok || ev != sched.events[0] {
		t.Error("Event(a) does not return the scheduled event")
	}
	if _, ok := e.Event("missing"); ok {
		t.Error("Event(missing) found")
	}
}

func TestEngineScheduleAllReportsFailures(t *testing.T) {
	reg := NewRegistry()
	for _, r := range []Rule{
		{ID: "solar", At: "sunrise", Command: CommandOn, Target: "aa.bb.cc"},
		{ID: "clock", At: "06:15", Command: CommandOff, Target: "aa.bb.cc"},
	} {
		if _, err := reg.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	sched := &fakeScheduler{}
	// No solar model: the sunrise rule cannot be timed.
	e := NewEngine(reg, sched, EngineOptions{Action: (&capture{}).action, Location: time.UTC})

	n, err := e.ScheduleAll()
	if n != 1 || !errors.Is(err, ErrInvalidTime) {
		t.Errorf("ScheduleAll() = %d, %v; want 1 and ErrInvalidTime", n, err)
	}

	sched.err = scheduler.ErrNextBeforeNow
	reg2 := NewRegistry()
	if _, err := reg2.Add(Rule{ID: "x", At: "06:15", Command: CommandOff, Target: "aa.bb.cc"}); err != nil {
		t.Fatal(err)
	}
	e2 := NewEngine(reg2, sched, EngineOptions{Action: (&capture{}).action})
	if _, err := e2.ScheduleAll(); !errors.Is(err, scheduler.ErrNextBeforeNow) {
		t.Errorf("ScheduleAll() error = %v, want ErrNextBeforeNow", err)
	}
}

func TestEngineBuildWithoutAction(t *testing.T) {
	e := NewEngine(NewRegistry(), &fakeScheduler{}, EngineOptions{})
	if _, err := e.Build(Rule{ID: "r", At: "07:00", Command: CommandOn, Target: "aa.bb.cc"}); err == nil {
		t.Error("Build() without action factory should fail")
	}
}
