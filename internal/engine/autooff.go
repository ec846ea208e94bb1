package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classpower/classpower-core/internal/activity"
	"github.com/classpower/classpower-core/internal/alert"
	"github.com/classpower/classpower-core/internal/device"
	"github.com/classpower/classpower-core/internal/dispatch"
)

// errSwitchAlreadyOff aborts an auto-off mutation without treating it as a
// failure: the switch was toggled since the timer was armed.
var errSwitchAlreadyOff = errors.New("engine: switch already off")

// AutoOffManager turns switches off again after a timeout.
//
// Timers are never cancelled. Each fire re-checks the switch's current
// state: a switch that was manually turned off (or off-and-on again, which
// re-arms a fresh timer) makes the stale fire a no-op. State-based
// idempotency avoids the race between cancelling a timer and the timer
// firing anyway.
type AutoOffManager struct {
	devices    *device.Registry
	dispatcher *dispatch.Dispatcher
	activities activity.Repository
	alerts     alert.Sink
	hub        Broadcaster
	logger     Logger

	// after schedules the one-shot callback; replaced in tests to fire
	// synchronously.
	after func(d time.Duration, f func())
}

// NewAutoOffManager creates an auto-off manager.
func NewAutoOffManager(
	devices *device.Registry,
	dispatcher *dispatch.Dispatcher,
	activities activity.Repository,
	alerts alert.Sink,
	hub Broadcaster,
) *AutoOffManager {
	return &AutoOffManager{
		devices:    devices,
		dispatcher: dispatcher,
		activities: activities,
		alerts:     alerts,
		hub:        hub,
		logger:     noopLogger{},
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// SetLogger sets the logger for the manager.
func (m *AutoOffManager) SetLogger(logger Logger) {
	m.logger = logger
}

// Arm schedules an off-action for one switch after the timeout.
func (m *AutoOffManager) Arm(deviceID, switchID string, timeout time.Duration) {
	m.logger.Debug("auto-off armed",
		"device_id", deviceID,
		"switch_id", switchID,
		"timeout", timeout,
	)
	m.after(timeout, func() {
		// Fires on a timer goroutine; nothing here may panic outward.
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("auto-off fire panicked",
					"device_id", deviceID,
					"switch_id", switchID,
					"panic", fmt.Sprintf("%v", r),
				)
			}
		}()
		m.fire(context.Background(), deviceID, switchID)
	})
}

// fire performs the timed off-action.
func (m *AutoOffManager) fire(ctx context.Context, deviceID, switchID string) {
	dev, err := m.devices.GetDevice(ctx, deviceID)
	if err != nil {
		m.logger.Warn("auto-off fire for unknown device",
			"device_id", deviceID, "error", err)
		return
	}
	sw := dev.Switch(switchID)
	if sw == nil {
		m.logger.Warn("auto-off fire for unknown switch",
			"device_id", deviceID, "switch_id", switchID)
		return
	}

	if !sw.State {
		// Toggled off since arming. The timer did its job by proxy.
		m.logger.Debug("auto-off no-op, switch already off",
			"device_id", deviceID, "switch_id", switchID)
		return
	}

	if sw.DontAutoOff {
		a := &alert.Alert{
			Type:     alert.TypeTimeout,
			Severity: alert.SeverityHigh,
			Message: fmt.Sprintf("switch %q in %s exceeded its timeout but is protected from auto-off",
				sw.Name, dev.Room),
			Metadata: map[string]any{
				"device_id": deviceID,
				"switch_id": switchID,
			},
		}
		if err := m.alerts.Raise(ctx, a); err != nil {
			m.logger.Error("raising timeout alert", "error", err)
		}
		return
	}

	res := m.dispatcher.Dispatch(dev.MACAddress, sw.EffectiveGPIO(), false)

	saved, err := m.devices.Mutate(ctx, deviceID, func(d *device.Device) error {
		cur := d.Switch(switchID)
		if cur == nil {
			return device.ErrSwitchNotFound
		}
		if !cur.State {
			return errSwitchAlreadyOff
		}
		cur.State = false
		if !res.Sent {
			d.QueueIntent(cur.EffectiveGPIO(), false, time.Now().UTC())
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errSwitchAlreadyOff) {
			return
		}
		m.logger.Error("auto-off state write failed",
			"device_id", deviceID, "switch_id", switchID, "error", err)
		return
	}

	if m.hub != nil {
		m.hub.Broadcast(ChannelStateChanged, StateChange{
			DeviceID: deviceID,
			SwitchID: switchID,
			State:    false,
			Source:   SourceAutoOff,
		})
	}

	entry := &activity.Entry{
		DeviceID:    deviceID,
		SwitchID:    switchID,
		Action:      "off",
		TriggeredBy: activity.TriggeredBySystem,
		Metadata:    map[string]any{"reason": "timeout"},
	}
	if !res.Sent {
		entry.Metadata["dispatch_failed"] = res.Reason
	}
	if err := m.activities.Create(ctx, entry); err != nil {
		m.logger.Error("recording auto-off activity", "error", err)
	}

	m.logger.Info("auto-off executed",
		"device_id", deviceID,
		"switch_id", switchID,
		"dispatched", res.Sent,
		"version", saved.Version,
	)
}
