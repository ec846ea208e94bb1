// Package engine orchestrates schedule execution: when a schedule fires it
// walks the schedule's switch list, resolves conflicts with motion sensors,
// writes the new switch state, dispatches the command to hardware (queueing
// a delivery intent when the board is unreachable), records the action, and
// arms auto-off timers for on-actions with a timeout.
//
// The same machinery backs manual toggles from the dashboard and intent
// replay when a board reconnects.
//
// Every failure inside one switch's processing is contained at that switch:
// the rest of the schedule still executes and the schedule's own bookkeeping
// (last run, one-shot disable) always happens unless the holiday
// short-circuit applied.
package engine
