package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, automation.ErrRuleExists) {
//	    // duplicate id in the configuration
//	}
var (
	// ErrRuleNotFound is returned when a rule ID does not exist.
	ErrRuleNotFound = errors.New("automation: rule not found")

	// ErrRuleExists is returned when adding a rule whose ID is taken.
	ErrRuleExists = errors.New("automation: rule already exists")

	// ErrInvalidRule is returned when a rule fails validation.
	ErrInvalidRule = errors.New("automation: invalid rule")

	// ErrInvalidTime is returned when "at" is not sunrise, sunset or HH:MM.
	ErrInvalidTime = errors.New("automation: invalid time")

	// ErrInvalidCommand is returned for unknown commands and for commands
	// that do not apply to the target.
	ErrInvalidCommand = errors.New("automation: invalid command")

	// ErrInvalidTarget is returned when a target is neither a device
	// address nor a group.
	ErrInvalidTarget = errors.New("automation: invalid target")
)
