package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/classpower/classpower-core/internal/alert"
	"github.com/classpower/classpower-core/internal/device"
	"github.com/classpower/classpower-core/internal/schedule"
)

// MotionLookup answers whether a device saw motion recently. Backed by the
// activity log in production.
type MotionLookup interface {
	HasRecentMotion(ctx context.Context, deviceID string, since time.Time) (bool, error)
}

// DefaultMotionWindow is how far back the resolver looks for motion.
const DefaultMotionWindow = 5 * time.Minute

// Resolver decides whether a scheduled off-action should be vetoed because
// the room is occupied. Only consulted for off-actions on schedules with
// respect_motion set.
type Resolver struct {
	motion MotionLookup
	alerts alert.Sink
	window time.Duration
}

// NewResolver creates a resolver. A non-positive window falls back to
// DefaultMotionWindow.
func NewResolver(motion MotionLookup, alerts alert.Sink, window time.Duration) *Resolver {
	if window <= 0 {
		window = DefaultMotionWindow
	}
	return &Resolver{motion: motion, alerts: alerts, window: window}
}

// Resolve reports whether the off-action on sw should be vetoed.
//
// A device without an active PIR sensor can never veto. Recent motion vetoes
// unless the switch is flagged dont_auto_off (those switches are expected to
// stay on regardless of occupancy, so motion carries no signal for them).
// A veto raises a motion_override alert as its only side effect.
func (r *Resolver) Resolve(ctx context.Context, sched *schedule.Schedule, dev *device.Device, sw *device.Switch, now time.Time) (bool, error) {
	if !dev.HasActivePIR() {
		return false, nil
	}

	moved, err := r.motion.HasRecentMotion(ctx, dev.ID, now.Add(-r.window))
	if err != nil {
		return false, fmt.Errorf("looking up recent motion for %s: %w", dev.ID, err)
	}
	if !moved || sw.DontAutoOff {
		return false, nil
	}

	a := &alert.Alert{
		Type: alert.TypeMotionOverride,
		Message: fmt.Sprintf("scheduled off for %q in %s skipped: motion detected within the last %s",
			sw.Name, dev.Room, r.window),
		Metadata: map[string]any{
			"device_id":   dev.ID,
			"switch_id":   sw.ID,
			"schedule_id": sched.ID,
		},
	}
	if err := r.alerts.Raise(ctx, a); err != nil {
		return true, fmt.Errorf("raising motion override alert: %w", err)
	}
	return true, nil
}
