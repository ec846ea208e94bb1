// Package schedule manages timed switch actions for classroom boards.
//
// A Schedule names an action ("on" or "off"), the switches it applies to,
// and a recurrence (daily, weekly on selected days, or once). The Registry
// keeps enabled schedules registered with a cron runner, one entry per
// schedule, and keeps registrations in sync across create, update, enable,
// disable, and delete.
//
// One-shot schedules have no native cron expression; they are registered
// like a daily schedule and disable themselves after their first execution.
//
// What happens when a schedule fires lives in the engine package; this
// package only decides when.
package schedule
