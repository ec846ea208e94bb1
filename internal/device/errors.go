package device

import "errors"

// Domain errors for the device package.
//
// Check with errors.Is():
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrSwitchNotFound is returned when a switch ID does not exist on a device.
	ErrSwitchNotFound = errors.New("device: switch not found")

	// ErrDeviceExists is returned when creating a device with an ID or MAC
	// that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrVersionConflict is returned when an update loses the optimistic
	// concurrency race; the caller must re-read and retry.
	ErrVersionConflict = errors.New("device: version conflict")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")
)
