package device

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constants.
const (
	maxNameLength = 100
	maxRoomLength = 100
	maxSwitches   = 16
	maxGPIO       = 64
)

// macPattern matches colon- or hyphen-separated MAC addresses.
var macRegex = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// Validate performs comprehensive validation on a device.
// Returns an error describing the first validation failure found.
func Validate(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidDevice)
	}
	if len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidDevice, maxNameLength)
	}
	if len(d.Room) > maxRoomLength {
		return fmt.Errorf("%w: room exceeds %d characters", ErrInvalidDevice, maxRoomLength)
	}

	// MAC may be empty (an unprovisioned board); when set it must be valid.
	if d.MACAddress != "" && !macRegex.MatchString(d.MACAddress) {
		return fmt.Errorf("%w: malformed mac address %q", ErrInvalidDevice, d.MACAddress)
	}

	if len(d.Switches) > maxSwitches {
		return fmt.Errorf("%w: exceeds maximum of %d switches", ErrInvalidDevice, maxSwitches)
	}

	seen := make(map[string]struct{}, len(d.Switches))
	for i := range d.Switches {
		sw := &d.Switches[i]
		if sw.ID == "" {
			return fmt.Errorf("%w: switch[%d] id is required", ErrInvalidDevice, i)
		}
		if _, dup := seen[sw.ID]; dup {
			return fmt.Errorf("%w: duplicate switch id %q", ErrInvalidDevice, sw.ID)
		}
		seen[sw.ID] = struct{}{}

		if sw.GPIO < 0 || sw.GPIO > maxGPIO {
			return fmt.Errorf("%w: switch %q gpio out of range", ErrInvalidDevice, sw.ID)
		}
		if sw.RelayGPIO < 0 || sw.RelayGPIO > maxGPIO {
			return fmt.Errorf("%w: switch %q relay_gpio out of range", ErrInvalidDevice, sw.ID)
		}
	}

	return nil
}

// NormalizeMAC lowercases a MAC address and converts hyphens to colons, so
// that lookups are canonical regardless of how the device was registered.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.ReplaceAll(mac, "-", ":"))
}
