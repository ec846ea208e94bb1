package schedule

import "errors"

// Domain errors for the schedule package.
//
// Check with errors.Is():
//
//	if errors.Is(err, schedule.ErrScheduleNotFound) {
//	    // handle not found case
//	}
var (
	// ErrScheduleNotFound is returned when a schedule ID does not exist.
	ErrScheduleNotFound = errors.New("schedule: not found")

	// ErrScheduleExists is returned when creating a schedule with an ID that
	// already exists.
	ErrScheduleExists = errors.New("schedule: already exists")

	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("schedule: invalid")
)
