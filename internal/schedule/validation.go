package schedule

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxSwitchTargets  = 64
	maxTimeoutMinutes = 24 * 60
)

// timeRegex matches a 24-hour "HH:MM" local time.
var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validate performs comprehensive validation on a schedule.
// Returns an error describing the first validation failure found.
func Validate(s *Schedule) error {
	if s == nil {
		return ErrInvalidSchedule
	}

	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidSchedule)
	}
	if len(s.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidSchedule, maxNameLength)
	}

	if s.Action != ActionOn && s.Action != ActionOff {
		return fmt.Errorf("%w: action must be %q or %q", ErrInvalidSchedule, ActionOn, ActionOff)
	}

	if err := validateRecurrence(&s.Recurrence); err != nil {
		return err
	}

	if len(s.Switches) == 0 {
		return fmt.Errorf("%w: at least one switch target required", ErrInvalidSchedule)
	}
	if len(s.Switches) > maxSwitchTargets {
		return fmt.Errorf("%w: exceeds maximum of %d switch targets", ErrInvalidSchedule, maxSwitchTargets)
	}
	seen := make(map[SwitchRef]struct{}, len(s.Switches))
	for i, ref := range s.Switches {
		if ref.DeviceID == "" || ref.SwitchID == "" {
			return fmt.Errorf("%w: switches[%d] needs device_id and switch_id", ErrInvalidSchedule, i)
		}
		if _, dup := seen[ref]; dup {
			return fmt.Errorf("%w: duplicate switch target %s/%s", ErrInvalidSchedule, ref.DeviceID, ref.SwitchID)
		}
		seen[ref] = struct{}{}
	}

	if s.TimeoutMinutes < 0 || s.TimeoutMinutes > maxTimeoutMinutes {
		return fmt.Errorf("%w: timeout_minutes out of range", ErrInvalidSchedule)
	}
	if s.TimeoutMinutes > 0 && s.Action != ActionOn {
		return fmt.Errorf("%w: timeout only applies to on-actions", ErrInvalidSchedule)
	}

	return nil
}

func validateRecurrence(r *Recurrence) error {
	switch r.Type {
	case RecurrenceDaily, RecurrenceOnce:
		if len(r.Days) != 0 {
			return fmt.Errorf("%w: days only apply to weekly recurrence", ErrInvalidSchedule)
		}
	case RecurrenceWeekly:
		if len(r.Days) == 0 {
			return fmt.Errorf("%w: weekly recurrence needs at least one day", ErrInvalidSchedule)
		}
		seen := make(map[int]struct{}, len(r.Days))
		for _, d := range r.Days {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: day %d out of range (0=Sunday..6=Saturday)", ErrInvalidSchedule, d)
			}
			if _, dup := seen[d]; dup {
				return fmt.Errorf("%w: duplicate day %d", ErrInvalidSchedule, d)
			}
			seen[d] = struct{}{}
		}
	default:
		return fmt.Errorf("%w: unknown recurrence type %q", ErrInvalidSchedule, r.Type)
	}

	if !timeRegex.MatchString(r.Time) {
		return fmt.Errorf("%w: time %q must be HH:MM (24-hour)", ErrInvalidSchedule, r.Time)
	}
	return nil
}
