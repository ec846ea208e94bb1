package device

import "time"

// Switch types used by the classroom deployments.
const (
	SwitchTypeLight     = "light"
	SwitchTypeFan       = "fan"
	SwitchTypeProjector = "projector"
	SwitchTypeSocket    = "socket"
)

// Device represents a classroom controller board and its attached switches.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// MACAddress identifies the board on the transport. Devices without a
	// MAC cannot be dispatched to.
	MACAddress string `json:"mac_address"`

	// Room is a free-form location label (e.g., "Lab 2", "Room 104").
	Room string `json:"room"`

	// Switches are the relay channels wired to this board (ordered).
	Switches []Switch `json:"switches"`

	// PIR is the optional motion sensor attached to this board.
	PIR *PIRSensor `json:"pir,omitempty"`

	// QueuedIntents are desired states awaiting delivery, at most one per
	// gpio. Persisted in the same row as Switches so a state write and its
	// fallback intent commit together.
	QueuedIntents []Intent `json:"queued_intents,omitempty"`

	// Version backs optimistic concurrency. Incremented on every update;
	// stale writers get ErrVersionConflict and must re-read.
	Version int64 `json:"version"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Switch is a single relay channel on a device.
type Switch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`

	// State is the persisted desired state (true = on). Hardware may lag
	// while the device is offline.
	State bool `json:"state"`

	// GPIO is the legacy pin number from early firmware revisions.
	GPIO int `json:"gpio"`

	// RelayGPIO is the relay driver pin; preferred over GPIO when set.
	RelayGPIO int `json:"relay_gpio,omitempty"`

	// DontAutoOff exempts this switch from automatic off-actions (servers,
	// aquariums, network gear). Timeouts raise an alert instead.
	DontAutoOff bool `json:"dont_auto_off"`

	// UsePIR marks this switch as motion-controlled. The board firmware
	// drives these switches from its local PIR sensor; the server stores
	// the flag for the dashboard and firmware config but never acts on it.
	// Motion vetoes key on the device-level PIR and DontAutoOff instead.
	UsePIR bool `json:"use_pir"`
}

// EffectiveGPIO returns the pin commands should be addressed to.
// RelayGPIO wins over the legacy GPIO field when both are set.
func (s *Switch) EffectiveGPIO() int {
	if s.RelayGPIO != 0 {
		return s.RelayGPIO
	}
	return s.GPIO
}

// PIRSensor describes the motion sensor attached to a device.
type PIRSensor struct {
	IsActive bool `json:"is_active"`
}

// Intent is a desired switch state awaiting delivery to hardware.
type Intent struct {
	SwitchGPIO   int       `json:"switch_gpio"`
	DesiredState bool      `json:"desired_state"`
	CreatedAt    time.Time `json:"created_at"`
}

// Switch returns a pointer to the switch with the given ID, or nil.
// The pointer aliases the device's slice; mutations through it are part of
// the aggregate and persist with the next save.
func (d *Device) Switch(id string) *Switch {
	for i := range d.Switches {
		if d.Switches[i].ID == id {
			return &d.Switches[i]
		}
	}
	return nil
}

// HasActivePIR reports whether the device has a PIR sensor that is active.
func (d *Device) HasActivePIR() bool {
	return d.PIR != nil && d.PIR.IsActive
}

// QueueIntent records a pending desired state for a gpio, replacing any
// existing intent for the same gpio (last write wins). At most one intent
// per gpio is live at any time.
func (d *Device) QueueIntent(gpio int, desiredState bool, now time.Time) {
	d.ClearIntent(gpio)
	d.QueuedIntents = append(d.QueuedIntents, Intent{
		SwitchGPIO:   gpio,
		DesiredState: desiredState,
		CreatedAt:    now,
	})
}

// ClearIntent removes the pending intent for a gpio, if any.
// Returns true if an intent was removed.
func (d *Device) ClearIntent(gpio int) bool {
	for i := range d.QueuedIntents {
		if d.QueuedIntents[i].SwitchGPIO == gpio {
			d.QueuedIntents = append(d.QueuedIntents[:i], d.QueuedIntents[i+1:]...)
			return true
		}
	}
	return false
}

// ClearIntentThrough removes the pending intent for a gpio only if it was
// queued at or before cutoff. An intent queued after cutoff carries a newer
// desired state and stays. Returns true if an intent was removed.
func (d *Device) ClearIntentThrough(gpio int, cutoff time.Time) bool {
	for i := range d.QueuedIntents {
		if d.QueuedIntents[i].SwitchGPIO == gpio {
			if d.QueuedIntents[i].CreatedAt.After(cutoff) {
				return false
			}
			d.QueuedIntents = append(d.QueuedIntents[:i], d.QueuedIntents[i+1:]...)
			return true
		}
	}
	return false
}

// DeepCopy creates a complete independent copy of the Device.
// Slice and pointer fields are cloned so modifications to the copy do not
// affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	if d.Switches != nil {
		cpy.Switches = make([]Switch, len(d.Switches))
		copy(cpy.Switches, d.Switches)
	}

	if d.QueuedIntents != nil {
		cpy.QueuedIntents = make([]Intent, len(d.QueuedIntents))
		copy(cpy.QueuedIntents, d.QueuedIntents)
	}

	if d.PIR != nil {
		pir := *d.PIR
		cpy.PIR = &pir
	}

	return &cpy
}
