package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/classpower/classpower-core/internal/activity"
	"github.com/classpower/classpower-core/internal/device"
	"github.com/classpower/classpower-core/internal/dispatch"
	"github.com/classpower/classpower-core/internal/schedule"
)

// Logger defines the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broadcaster pushes live events to connected dashboard clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// HolidayChecker answers whether a site-local time falls on a holiday.
type HolidayChecker interface {
	IsHoliday(t time.Time) bool
	HolidayName(t time.Time) (string, bool)
}

// MetricsWriter records switch state transitions for time-series analysis.
// Optional; a nil writer disables metrics.
type MetricsWriter interface {
	WriteSwitchState(deviceID, switchID string, state bool, source string)
}

// Websocket channels the engine publishes on.
const (
	ChannelStateChanged     = "device.state_changed"
	ChannelScheduleExecuted = "schedule.executed"
)

// Sources tagged on state-change broadcasts.
const (
	SourceScheduleUpdate = "schedule:update_db"
	SourceAutoOff        = "schedule:auto_off_db"
	SourceManual         = "manual"
)

// StateChange is the payload broadcast after every switch mutation.
type StateChange struct {
	DeviceID string `json:"device_id"`
	SwitchID string `json:"switch_id"`
	State    bool   `json:"state"`
	Source   string `json:"source"`
}

// SwitchResult describes one switch's outcome within a schedule execution.
type SwitchResult struct {
	DeviceID   string `json:"device_id"`
	SwitchID   string `json:"switch_id"`
	OK         bool   `json:"ok"`
	Vetoed     bool   `json:"vetoed,omitempty"`
	Dispatched bool   `json:"dispatched,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ExecutionSummary is broadcast after each schedule execution.
type ExecutionSummary struct {
	ScheduleID string         `json:"schedule_id"`
	Action     string         `json:"action"`
	RanAt      time.Time      `json:"ran_at"`
	Switches   []SwitchResult `json:"switches"`
}

// Config collects the engine's dependencies.
type Config struct {
	Devices    *device.Registry
	Schedules  *schedule.Registry
	Dispatcher *dispatch.Dispatcher
	Resolver   *Resolver
	AutoOff    *AutoOffManager
	Activities activity.Repository
	Holidays   HolidayChecker
	Hub        Broadcaster    // optional
	Metrics    MetricsWriter  // optional
	Location   *time.Location // site timezone for holiday checks
}

// Engine runs schedule executions, manual toggles, and intent replay.
type Engine struct {
	devices    *device.Registry
	schedules  *schedule.Registry
	dispatcher *dispatch.Dispatcher
	resolver   *Resolver
	autoOff    *AutoOffManager
	activities activity.Repository
	holidays   HolidayChecker
	hub        Broadcaster
	metrics    MetricsWriter
	loc        *time.Location
	logger     Logger

	// now is replaced in tests for deterministic clocks.
	now func() time.Time
}

// New creates an engine from its dependencies.
func New(cfg Config) *Engine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		devices:    cfg.Devices,
		schedules:  cfg.Schedules,
		dispatcher: cfg.Dispatcher,
		resolver:   cfg.Resolver,
		autoOff:    cfg.AutoOff,
		activities: cfg.Activities,
		holidays:   cfg.Holidays,
		hub:        cfg.Hub,
		metrics:    cfg.Metrics,
		loc:        loc,
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// RunSchedule implements schedule.Runner: it is invoked by the cron layer
// when a schedule's timer fires. Errors are logged, never propagated — a
// timer fire has no caller to report to.
func (e *Engine) RunSchedule(scheduleID string) {
	ctx := context.Background()

	sched, err := e.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		e.logger.Error("fired schedule not found", "schedule_id", scheduleID, "error", err)
		return
	}
	if _, err := e.Execute(ctx, sched); err != nil {
		e.logger.Error("schedule execution failed", "schedule_id", scheduleID, "error", err)
	}
}

// Execute runs one schedule firing end to end and returns the per-switch
// summary. A holiday short-circuit returns a nil summary: nothing was
// mutated and last run is left untouched.
func (e *Engine) Execute(ctx context.Context, sched *schedule.Schedule) (*ExecutionSummary, error) {
	now := e.now().In(e.loc)

	if sched.CheckHolidays && e.holidays != nil && e.holidays.IsHoliday(now) {
		name, _ := e.holidays.HolidayName(now)
		e.logger.Info("schedule skipped for holiday",
			"schedule_id", sched.ID, "holiday", name)
		return nil, nil
	}

	summary := &ExecutionSummary{
		ScheduleID: sched.ID,
		Action:     sched.Action,
		RanAt:      now,
		Switches:   make([]SwitchResult, 0, len(sched.Switches)),
	}

	for _, ref := range sched.Switches {
		summary.Switches = append(summary.Switches, e.executeSwitch(ctx, sched, ref, now))
	}

	// Bookkeeping always runs, whatever happened per switch.
	if err := e.schedules.CompleteRun(ctx, sched.ID, now); err != nil {
		e.logger.Error("recording schedule run", "schedule_id", sched.ID, "error", err)
	}

	if e.hub != nil {
		e.hub.Broadcast(ChannelScheduleExecuted, summary)
	}

	e.logger.Info("schedule executed",
		"schedule_id", sched.ID,
		"action", sched.Action,
		"switches", len(summary.Switches),
	)
	return summary, nil
}

// executeSwitch processes one switch reference. All errors are contained
// here and reported in the result.
func (e *Engine) executeSwitch(ctx context.Context, sched *schedule.Schedule, ref schedule.SwitchRef, now time.Time) SwitchResult {
	result := SwitchResult{DeviceID: ref.DeviceID, SwitchID: ref.SwitchID}

	dev, err := e.devices.GetDevice(ctx, ref.DeviceID)
	if err != nil {
		e.logger.Warn("schedule references unknown device",
			"schedule_id", sched.ID, "device_id", ref.DeviceID)
		result.Error = "device not found"
		return result
	}
	sw := dev.Switch(ref.SwitchID)
	if sw == nil {
		e.logger.Warn("schedule references unknown switch",
			"schedule_id", sched.ID, "device_id", ref.DeviceID, "switch_id", ref.SwitchID)
		result.Error = "switch not found"
		return result
	}

	desired := sched.Action == schedule.ActionOn

	if !desired && sched.RespectMotion {
		vetoed, err := e.resolver.Resolve(ctx, sched, dev, sw, now)
		if err != nil {
			e.logger.Error("conflict resolution failed",
				"schedule_id", sched.ID, "device_id", ref.DeviceID, "error", err)
		}
		if vetoed {
			result.Vetoed = true
			return result
		}
		if err != nil {
			result.Error = "conflict resolution failed"
			return result
		}
	}

	res := e.dispatcher.Dispatch(dev.MACAddress, sw.EffectiveGPIO(), desired)

	if _, err := e.devices.SetSwitchState(ctx, ref.DeviceID, ref.SwitchID, desired, !res.Sent); err != nil {
		e.logger.Error("persisting switch state",
			"schedule_id", sched.ID, "device_id", ref.DeviceID,
			"switch_id", ref.SwitchID, "error", err)
		result.Error = "state write failed"
		return result
	}

	if e.hub != nil {
		e.hub.Broadcast(ChannelStateChanged, StateChange{
			DeviceID: ref.DeviceID,
			SwitchID: ref.SwitchID,
			State:    desired,
			Source:   SourceScheduleUpdate,
		})
	}
	if e.metrics != nil {
		e.metrics.WriteSwitchState(ref.DeviceID, ref.SwitchID, desired, SourceScheduleUpdate)
	}

	entry := &activity.Entry{
		DeviceID:    ref.DeviceID,
		SwitchID:    ref.SwitchID,
		Action:      sched.Action,
		TriggeredBy: activity.TriggeredBySchedule,
		Metadata:    map[string]any{"schedule_id": sched.ID},
	}
	if !res.Sent {
		entry.Metadata["dispatch_failed"] = res.Reason
	}
	if err := e.activities.Create(ctx, entry); err != nil {
		e.logger.Error("recording schedule activity", "error", err)
	}

	if desired && sched.TimeoutMinutes > 0 {
		e.autoOff.Arm(ref.DeviceID, ref.SwitchID,
			time.Duration(sched.TimeoutMinutes)*time.Minute)
	}

	result.OK = true
	result.Dispatched = res.Sent
	return result
}

// ManualToggle handles a switch toggle from the dashboard: dispatch, state
// write (with intent fallback), broadcast, activity entry, and auto-off
// arming when an on-action carries a timeout.
func (e *Engine) ManualToggle(ctx context.Context, deviceID, switchID string, state bool, timeoutMinutes int) (*device.Device, error) {
	dev, err := e.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	sw := dev.Switch(switchID)
	if sw == nil {
		return nil, fmt.Errorf("%w: %s on device %s", device.ErrSwitchNotFound, switchID, deviceID)
	}

	res := e.dispatcher.Dispatch(dev.MACAddress, sw.EffectiveGPIO(), state)

	saved, err := e.devices.SetSwitchState(ctx, deviceID, switchID, state, !res.Sent)
	if err != nil {
		return nil, err
	}

	if e.hub != nil {
		e.hub.Broadcast(ChannelStateChanged, StateChange{
			DeviceID: deviceID,
			SwitchID: switchID,
			State:    state,
			Source:   SourceManual,
		})
	}
	if e.metrics != nil {
		e.metrics.WriteSwitchState(deviceID, switchID, state, SourceManual)
	}

	action := "off"
	if state {
		action = "on"
	}
	entry := &activity.Entry{
		DeviceID:    deviceID,
		SwitchID:    switchID,
		Action:      action,
		TriggeredBy: activity.TriggeredByManual,
	}
	if !res.Sent {
		entry.Metadata = map[string]any{"dispatch_failed": res.Reason}
	}
	if err := e.activities.Create(ctx, entry); err != nil {
		e.logger.Error("recording manual activity", "error", err)
	}

	if state && timeoutMinutes > 0 {
		e.autoOff.Arm(deviceID, switchID, time.Duration(timeoutMinutes)*time.Minute)
	}

	return saved, nil
}

// ReplayIntents drains the queued intents of a reconnected board. Each
// intent is dispatched; delivered intents are removed from the queue.
// Undeliverable intents stay queued for the next reconnect.
func (e *Engine) ReplayIntents(ctx context.Context, mac string) error {
	dev, err := e.devices.GetDeviceByMAC(ctx, mac)
	if err != nil {
		return err
	}
	if len(dev.QueuedIntents) == 0 {
		return nil
	}

	var delivered []device.Intent
	for _, intent := range dev.QueuedIntents {
		res := e.dispatcher.Dispatch(dev.MACAddress, intent.SwitchGPIO, intent.DesiredState)
		if res.Sent {
			delivered = append(delivered, intent)
		} else {
			e.logger.Warn("intent replay failed",
				"device_id", dev.ID, "gpio", intent.SwitchGPIO, "reason", res.Reason)
		}
	}
	if len(delivered) == 0 {
		return nil
	}

	// Clear only the intents we actually sent. An intent queued for the
	// same gpio after the dispatch snapshot was never delivered and must
	// survive for the next replay.
	_, err = e.devices.Mutate(ctx, dev.ID, func(d *device.Device) error {
		for _, intent := range delivered {
			d.ClearIntentThrough(intent.SwitchGPIO, intent.CreatedAt)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing replayed intents: %w", err)
	}

	e.logger.Info("intents replayed",
		"device_id", dev.ID, "delivered", len(delivered),
		"remaining", len(dev.QueuedIntents)-len(delivered))
	return nil
}

// RecordMotion logs a PIR motion event for a device. The entry is what the
// conflict resolver later queries.
func (e *Engine) RecordMotion(ctx context.Context, deviceID string) error {
	entry := &activity.Entry{
		DeviceID:    deviceID,
		Action:      activity.ActionMotion,
		TriggeredBy: activity.TriggeredByPIR,
	}
	if err := e.activities.Create(ctx, entry); err != nil {
		return fmt.Errorf("recording motion: %w", err)
	}
	return nil
}
