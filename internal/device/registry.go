package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// maxMutateAttempts bounds optimistic-concurrency retries. Three attempts
// covers the realistic contention on a single classroom board (a manual
// toggle racing a schedule firing); beyond that the conflict is surfaced.
const maxMutateAttempts = 3

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// Mutations go through Mutate, which re-reads the row, applies the caller's
// function, and saves with compare-and-swap retry. The cache holds deep
// copies and is updated after every successful write.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID from the cache.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(_ context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrDeviceNotFound
}

// GetDeviceByMAC retrieves a device by its MAC address (case-insensitive).
func (r *Registry) GetDeviceByMAC(_ context.Context, mac string) (*Device, error) {
	key := NormalizeMAC(mac)

	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, d := range r.cache {
		if d.MACAddress == key {
			return d.DeepCopy(), nil
		}
	}
	return nil, ErrDeviceNotFound
}

// ListDevices retrieves all devices from the cache as deep copies.
func (r *Registry) ListDevices(_ context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

// CreateDevice validates, persists, and caches a new device.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	if err := Validate(d); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", d.ID, "name", d.Name, "mac", d.MACAddress)
	return nil
}

// DeleteDevice removes a device from persistence and cache.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// Mutate applies fn to a freshly-loaded copy of the device and saves it,
// retrying on version conflicts. This is the single write path for switch
// state and intent-queue changes: everything fn touches is committed in one
// row write.
//
// fn runs once per attempt and must be side-effect free apart from mutating
// the device it is handed. Returning an error from fn aborts the mutation.
//
// Returns the saved device (post-increment version) on success.
func (r *Registry) Mutate(ctx context.Context, id string, fn func(*Device) error) (*Device, error) {
	var lastErr error

	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		dev, err := r.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := fn(dev); err != nil {
			return nil, err
		}

		err = r.repo.Update(ctx, dev)
		if err == nil {
			r.cacheMu.Lock()
			r.cache[dev.ID] = dev.DeepCopy()
			r.cacheMu.Unlock()
			return dev, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		r.logger.Debug("device write conflict, retrying",
			"device_id", id,
			"attempt", attempt,
		)
	}

	return nil, fmt.Errorf("device %s: %d attempts exhausted: %w", id, maxMutateAttempts, lastErr)
}

// SetSwitchState persists a new state for one switch and returns the saved
// device. When queueIntent is true a delivery intent for the switch's
// effective gpio is recorded in the same write (used when dispatch failed).
func (r *Registry) SetSwitchState(ctx context.Context, deviceID, switchID string, state, queueIntent bool) (*Device, error) {
	return r.Mutate(ctx, deviceID, func(d *Device) error {
		sw := d.Switch(switchID)
		if sw == nil {
			return fmt.Errorf("%w: %s on device %s", ErrSwitchNotFound, switchID, deviceID)
		}
		sw.State = state
		if queueIntent {
			d.QueueIntent(sw.EffectiveGPIO(), state, time.Now().UTC())
		}
		return nil
	})
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
