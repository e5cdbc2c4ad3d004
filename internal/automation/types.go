package automation

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
)

// Rule is one timed command.
type Rule struct {
	ID          string        `json:"id"`
	Description string        `json:"description,omitempty"`
	At          string        `json:"at"`
	Offset      time.Duration `json:"offset"`
	Command     string        `json:"command"`
	Target      string        `json:"target"`
}

// Commands a rule may send.
const (
	CommandOn       = "on"
	CommandOff      = "off"
	CommandBeep     = "beep"
	CommandGroupOn  = "group_on"
	CommandGroupOff = "group_off"
)

// Solar keywords for Rule.At.
const (
	AtSunrise = "sunrise"
	AtSunset  = "sunset"
)

// String describes the rule for logs and scheduler event descriptions.
func (r Rule) String() string {
	when := r.At
	if r.Offset != 0 {
		when = fmt.Sprintf("%s%+dm", r.At, int(r.Offset/time.Minute))
	}
	s := fmt.Sprintf("automation %s: %s %s at %s", r.ID, r.Command, r.Target, when)
	if r.Description != "" {
		s += " (" + r.Description + ")"
	}
	return s
}

// RulesFromConfig converts configured automations to rules. IDs left empty
// are filled in when the rules are added to a registry.
func RulesFromConfig(cfgs []config.AutomationConfig) []Rule {
	rules := make([]Rule, 0, len(cfgs))
	for _, c := range cfgs {
		rules = append(rules, Rule{
			ID:          c.ID,
			Description: c.Description,
			At:          c.At,
			Offset:      time.Duration(c.OffsetMinutes) * time.Minute,
			Command:     c.Command,
			Target:      c.Target,
		})
	}
	return rules
}
