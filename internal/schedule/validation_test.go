package schedule

import (
	"errors"
	"testing"
)

func validSchedule() *Schedule {
	return &Schedule{
		ID:   "sch-1",
		Name: "Morning lights",
		Recurrence: Recurrence{
			Type: RecurrenceDaily,
			Time: "08:00",
		},
		Action: ActionOn,
		Switches: []SwitchRef{
			{DeviceID: "dev-1", SwitchID: "sw-1"},
		},
		Enabled: true,
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validSchedule()); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}

	weekly := validSchedule()
	weekly.Recurrence = Recurrence{Type: RecurrenceWeekly, Time: "17:30", Days: []int{1, 2, 3, 4, 5}}
	if err := Validate(weekly); err != nil {
		t.Fatalf("valid weekly schedule rejected: %v", err)
	}

	timeout := validSchedule()
	timeout.TimeoutMinutes = 90
	if err := Validate(timeout); err != nil {
		t.Fatalf("on-action with timeout rejected: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Schedule)
	}{
		{"empty name", func(s *Schedule) { s.Name = " " }},
		{"bad action", func(s *Schedule) { s.Action = "toggle" }},
		{"no switches", func(s *Schedule) { s.Switches = nil }},
		{"duplicate switch target", func(s *Schedule) {
			s.Switches = append(s.Switches, s.Switches[0])
		}},
		{"incomplete switch ref", func(s *Schedule) {
			s.Switches[0].SwitchID = ""
		}},
		{"unknown recurrence", func(s *Schedule) { s.Recurrence.Type = "monthly" }},
		{"weekly without days", func(s *Schedule) {
			s.Recurrence = Recurrence{Type: RecurrenceWeekly, Time: "08:00"}
		}},
		{"day out of range", func(s *Schedule) {
			s.Recurrence = Recurrence{Type: RecurrenceWeekly, Time: "08:00", Days: []int{7}}
		}},
		{"duplicate days", func(s *Schedule) {
			s.Recurrence = Recurrence{Type: RecurrenceWeekly, Time: "08:00", Days: []int{1, 1}}
		}},
		{"days on daily", func(s *Schedule) { s.Recurrence.Days = []int{1} }},
		{"bad time", func(s *Schedule) { s.Recurrence.Time = "25:00" }},
		{"12-hour time", func(s *Schedule) { s.Recurrence.Time = "8:00" }},
		{"negative timeout", func(s *Schedule) { s.TimeoutMinutes = -1 }},
		{"timeout on off-action", func(s *Schedule) {
			s.Action = ActionOff
			s.TimeoutMinutes = 30
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchedule()
			tt.mutate(s)
			if err := Validate(s); !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("err = %v, want ErrInvalidSchedule", err)
			}
		})
	}
}
