package schedule

import "time"

// Recurrence types.
const (
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
	RecurrenceOnce   = "once"
)

// Actions a schedule can perform.
const (
	ActionOn  = "on"
	ActionOff = "off"
)

// Recurrence describes when a schedule fires.
type Recurrence struct {
	// Type is daily, weekly, or once.
	Type string `json:"type"`

	// Time is the local fire time in "HH:MM" (24-hour).
	Time string `json:"time"`

	// Days selects weekdays for weekly schedules: 0 = Sunday .. 6 = Saturday.
	// Ignored for daily and once.
	Days []int `json:"days,omitempty"`
}

// SwitchRef points at one switch on one device.
type SwitchRef struct {
	DeviceID string `json:"device_id"`
	SwitchID string `json:"switch_id"`
}

// Schedule is a timed action over a set of switches.
type Schedule struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Recurrence Recurrence  `json:"recurrence"`
	Action     string      `json:"action"`
	Switches   []SwitchRef `json:"switches"`

	Enabled bool `json:"enabled"`

	// CheckHolidays skips execution entirely on configured holidays.
	CheckHolidays bool `json:"check_holidays"`

	// RespectMotion lets recent PIR motion veto an off-action.
	RespectMotion bool `json:"respect_motion"`

	// TimeoutMinutes arms an auto-off timer after an on-action; zero means
	// no timeout.
	TimeoutMinutes int `json:"timeout_minutes"`

	// LastRun is the time of the last completed execution. Nil until the
	// schedule has fired; holiday skips do not count as a run.
	LastRun *time.Time `json:"last_run,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOnce reports whether this is a one-shot schedule.
func (s *Schedule) IsOnce() bool {
	return s.Recurrence.Type == RecurrenceOnce
}

// DeepCopy creates a complete independent copy of the Schedule.
func (s *Schedule) DeepCopy() *Schedule {
	if s == nil {
		return nil
	}

	cpy := *s

	if s.Recurrence.Days != nil {
		cpy.Recurrence.Days = make([]int, len(s.Recurrence.Days))
		copy(cpy.Recurrence.Days, s.Recurrence.Days)
	}
	if s.Switches != nil {
		cpy.Switches = make([]SwitchRef, len(s.Switches))
		copy(cpy.Switches, s.Switches)
	}
	if s.LastRun != nil {
		t := *s.LastRun
		cpy.LastRun = &t
	}

	return &cpy
}
