package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
)

// Validation constants.
const (
	maxDescriptionLen = 500
	maxOffset         = 12 * time.Hour
	groupPrefix       = "group-"
)

// trigger is the parsed form of Rule.At.
type trigger struct {
	solar bool
	kind  scheduler.SolarKind
	daily scheduler.DailyAt
}

// target is the parsed form of Rule.Target.
type target struct {
	group   bool
	groupID byte
	address codec.Address
}

// ValidateRule reports the first problem with r.
func ValidateRule(r Rule) error {
	if len(r.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidRule, maxDescriptionLen)
	}
	if r.Offset < -maxOffset || r.Offset > maxOffset {
		return fmt.Errorf("%w: offset must be within %s", ErrInvalidRule, maxOffset)
	}
	if _, err := parseAt(r.At); err != nil {
		return err
	}
	t, err := parseTarget(r.Target)
	if err != nil {
		return err
	}
	return checkCommand(r.Command, t)
}

// parseAt parses "sunrise", "sunset" or a 24-hour "HH:MM".
func parseAt(at string) (trigger, error) {
	switch at {
	case AtSunrise, AtSunset:
		kind, err := scheduler.ParseSolarKind(at)
		if err != nil {
			return trigger{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
		}
		return trigger{solar: true, kind: kind}, nil
	}

	hh, mm, ok := strings.Cut(at, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return trigger{}, fmt.Errorf("%w: %q", ErrInvalidTime, at)
	}
	hour, errH := strconv.Atoi(hh)
	minute, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return trigger{}, fmt.Errorf("%w: %q", ErrInvalidTime, at)
	}
	return trigger{daily: scheduler.DailyAt{Hour: hour, Minute: minute}}, nil
}

// parseTarget parses a device address or "group-N".
func parseTarget(s string) (target, error) {
	if rest, ok := strings.CutPrefix(s, groupPrefix); ok {
		n, err := strconv.ParseUint(rest, 10, 8)
		if err != nil {
			return target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
		}
		return target{group: true, groupID: byte(n)}, nil
	}
	addr, err := codec.ParseAddress(s)
	if err != nil {
		return target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
	return target{address: addr}, nil
}

// checkCommand verifies that cmd is known and fits the target kind.
func checkCommand(cmd string, t target) error {
	switch cmd {
	case CommandOn, CommandOff, CommandBeep:
		if t.group {
			return fmt.Errorf("%w: %s needs a device target", ErrInvalidCommand, cmd)
		}
	case CommandGroupOn, CommandGroupOff:
		if !t.group {
			return fmt.Errorf("%w: %s needs a group target", ErrInvalidCommand, cmd)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCommand, cmd)
	}
	return nil
}

// GenerateID creates a new UUID for a rule.
func GenerateID() string {
	return uuid.New().String()
}
