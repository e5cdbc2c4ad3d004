// Package automation turns timed rules from the configuration into
// scheduler events that send commands through the modem.
//
// A rule names when to fire and what to send:
//
//	automations:
//	  - id: porch-light
//	    description: porch light at dusk
//	    at: sunset
//	    offset_minutes: -15
//	    command: on
//	    target: 1a.2b.3c
//
// "at" is "sunrise", "sunset" or a local "HH:MM". An offset moves the time
// earlier or later. Device targets take on, off and beep; ALL-Link group
// targets ("group-3") take group_on and group_off.
//
// # Key Types
//
//   - Rule: one validated timed command
//   - Registry: thread-safe set of rules keyed by ID
//   - Engine: builds scheduler events for every rule and adds them
//
// # Usage
//
//	reg := automation.NewRegistry()
//	for _, r := range automation.RulesFromConfig(cfg.Automations) {
//	    if _, err := reg.Add(r); err != nil {
//	        return err
//	    }
//	}
//	engine := automation.NewEngine(reg, sched, automation.EngineOptions{
//	    Action:   func(m codec.Message) scheduler.Action { return modem.CommandAction(session, m) },
//	    Solar:    solar.New(lat, lon),
//	    Location: cfg.Location(),
//	})
//	n, err := engine.ScheduleAll()
package automation
