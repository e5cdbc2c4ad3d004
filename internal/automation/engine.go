package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
)

// maxRuleExecutionTime bounds one firing of a rule.
const maxRuleExecutionTime = 30 * time.Second

// Scheduler is the part of the scheduler the engine adds events to.
type Scheduler interface {
	Add(ev *scheduler.Event) error
}

// ActionFunc turns a host command into a scheduler action, typically
// modem.CommandAction bound to a session.
type ActionFunc func(msg codec.Message) scheduler.Action

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Action is required.
	Action ActionFunc

	// Solar is required for sunrise and sunset rules.
	Solar scheduler.SolarModel

	// Location is the zone HH:MM rules are read in. Defaults to time.Local.
	Location *time.Location

	Logger Logger
}

// Engine builds and schedules one event per rule.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	registry  *Registry
	scheduler Scheduler
	action    ActionFunc
	solar     scheduler.SolarModel
	loc       *time.Location
	logger    Logger

	mu     sync.Mutex
	events map[string]*scheduler.Event
}

// NewEngine creates an engine over a rule registry.
func NewEngine(registry *Registry, sched Scheduler, opts EngineOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Engine{
		registry:  registry,
		scheduler: sched,
		action:    opts.Action,
		solar:     opts.Solar,
		loc:       opts.Location,
		logger:    opts.Logger,
		events:    make(map[string]*scheduler.Event),
	}
}

// Build creates the scheduler event for rule without adding it.
func (e *Engine) Build(rule Rule) (*scheduler.Event, error) {
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	if e.action == nil {
		return nil, errors.New("automation: no action factory")
	}
	trig, _ := parseAt(rule.At)
	tgt, _ := parseTarget(rule.Target)

	msg, err := commandMessage(rule.Command, tgt)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	next, err := e.nextTime(trig)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	if rule.Offset != 0 {
		next = scheduler.TimeOffset(rule.Offset, next)
	}

	action := e.action(msg)
	bounded := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, maxRuleExecutionTime)
		defer cancel()
		return action(ctx)
	}
	return scheduler.NewEvent(bounded, next, rule.String()), nil
}

// nextTime picks the recurrence for a trigger. Wall-clock rules are read
// in the engine's location whatever zone the scheduler clock uses.
func (e *Engine) nextTime(t trigger) (scheduler.NextTime, error) {
	if t.solar {
		if e.solar == nil {
			return nil, fmt.Errorf("%w: %s needs a site location", ErrInvalidTime, t.kind)
		}
		return scheduler.SolarEvent(e.solar, t.kind), nil
	}
	daily := t.daily
	loc := e.loc
	return scheduler.NextTimeFunc(func(now, previous time.Time) (time.Time, bool) {
		return daily.Next(now.In(loc), previous)
	}), nil
}

// commandMessage builds the host command a rule sends.
func commandMessage(command string, t target) (codec.Message, error) {
	switch command {
	case CommandOn:
		return plm.NewSendMessage(t.address, plm.OnCmd, plm.FullOn)
	case CommandOff:
		return plm.NewSendMessage(t.address, plm.OffCmd, 0)
	case CommandBeep:
		return plm.NewSendMessage(t.address, plm.BeepCmd, 0)
	case CommandGroupOn:
		return plm.NewSendAllLink(t.groupID, plm.OnCmd, 0)
	case CommandGroupOff:
		return plm.NewSendAllLink(t.groupID, plm.OffCmd, 0)
	default:
		return codec.Message{}, fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}
}

// ScheduleAll builds and adds an event for every rule in the registry. A
// rule that cannot be scheduled is logged and skipped; the joined errors
// are returned with the number of rules scheduled.
func (e *Engine) ScheduleAll() (int, error) {
	var errs []error
	scheduled := 0
	for _, rule := range e.registry.List() {
		if err := e.schedule(rule); err != nil {
			e.logger.Error("automation not scheduled", "id", rule.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		scheduled++
	}
	e.logger.Info("automations scheduled", "count", scheduled, "failed", len(errs))
	return scheduled, errors.Join(errs...)
}

func (e *Engine) schedule(rule Rule) error {
	ev, err := e.Build(rule)
	if err != nil {
		return err
	}
	if err := e.scheduler.Add(ev); err != nil {
		return fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	e.mu.Lock()
	e.events[rule.ID] = ev
	e.mu.Unlock()
	if when, ok := ev.When(); ok {
		e.logger.Debug("automation scheduled", "id", rule.ID, "when", when.Format(scheduler.TimeFormat))
	}
	return nil
}

// Event returns the scheduled event for a rule.
func (e *Engine) Event(id string) (*scheduler.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.events[id]
	return ev, ok
}
