// Package holiday answers "is today a holiday?" for schedule execution.
//
// The calendar is a YAML file maintained by the school office: fixed dates
// plus optional weekly closure days. It is read once at startup; updating
// the file needs a restart, which matches how rarely holiday lists change.
package holiday

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// calendarFile is the on-disk YAML shape.
type calendarFile struct {
	// Dates are fixed holidays in "2006-01-02" form.
	Dates []dateEntry `yaml:"dates"`

	// WeeklyOff are weekday names on which the site is always closed
	// (e.g. "sunday").
	WeeklyOff []string `yaml:"weekly_off"`
}

type dateEntry struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

// Calendar is an immutable set of holiday dates. Safe for concurrent use.
type Calendar struct {
	dates     map[string]string // "2006-01-02" -> name
	weeklyOff map[time.Weekday]bool
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load reads a holiday calendar from a YAML file.
func Load(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading holiday file: %w", err)
	}
	return Parse(data)
}

// Parse builds a calendar from YAML bytes.
func Parse(data []byte) (*Calendar, error) {
	var file calendarFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing holiday file: %w", err)
	}

	cal := &Calendar{
		dates:     make(map[string]string, len(file.Dates)),
		weeklyOff: make(map[time.Weekday]bool),
	}
	for _, e := range file.Dates {
		if _, err := time.Parse("2006-01-02", e.Date); err != nil {
			return nil, fmt.Errorf("holiday date %q: %w", e.Date, err)
		}
		cal.dates[e.Date] = e.Name
	}
	for _, name := range file.WeeklyOff {
		wd, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in weekly_off", name)
		}
		cal.weeklyOff[wd] = true
	}
	return cal, nil
}

// Empty returns a calendar with no holidays.
func Empty() *Calendar {
	return &Calendar{
		dates:     map[string]string{},
		weeklyOff: map[time.Weekday]bool{},
	}
}

// IsHoliday reports whether t falls on a holiday. The date is taken in t's
// own location; callers pass site-local time.
func (c *Calendar) IsHoliday(t time.Time) bool {
	if c.weeklyOff[t.Weekday()] {
		return true
	}
	_, ok := c.dates[t.Format("2006-01-02")]
	return ok
}

// HolidayName returns the name of the holiday on t, if any.
func (c *Calendar) HolidayName(t time.Time) (string, bool) {
	if name, ok := c.dates[t.Format("2006-01-02")]; ok {
		return name, true
	}
	if c.weeklyOff[t.Weekday()] {
		return t.Weekday().String(), true
	}
	return "", false
}
