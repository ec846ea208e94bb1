package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CronSpec renders the recurrence as a standard five-field cron expression.
//
// Daily and once both map to an every-day expression; one-shot schedules
// disable themselves after their first run, so the extra matches never fire.
// Weekly lists its days in the day-of-week field.
//
// The recurrence must be valid; call Validate first.
func CronSpec(r Recurrence) (string, error) {
	parts := strings.SplitN(r.Time, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidSchedule, r.Time)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: bad hour in %q", ErrInvalidSchedule, r.Time)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: bad minute in %q", ErrInvalidSchedule, r.Time)
	}

	switch r.Type {
	case RecurrenceDaily, RecurrenceOnce:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case RecurrenceWeekly:
		if len(r.Days) == 0 {
			return "", fmt.Errorf("%w: weekly recurrence needs days", ErrInvalidSchedule)
		}
		days := make([]int, len(r.Days))
		copy(days, r.Days)
		sort.Ints(days)
		strs := make([]string, len(days))
		for i, d := range days {
			strs[i] = strconv.Itoa(d)
		}
		return fmt.Sprintf("%d %d * * %s", minute, hour, strings.Join(strs, ",")), nil
	default:
		return "", fmt.Errorf("%w: unknown recurrence type %q", ErrInvalidSchedule, r.Type)
	}
}
