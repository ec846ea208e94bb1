package api

import (
	"context"
	"sync"
	"time"

	"github.com/classpower/classpower-core/internal/activity"
	"github.com/classpower/classpower-core/internal/alert"
	"github.com/classpower/classpower-core/internal/device"
	"github.com/classpower/classpower-core/internal/schedule"
)

// ─── In-Memory Device Repository ───

type memDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*device.Device
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{devices: make(map[string]*device.Device)}
}

func (m *memDeviceRepo) GetByID(_ context.Context, id string) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (m *memDeviceRepo) GetByMAC(_ context.Context, mac string) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	norm := device.NormalizeMAC(mac)
	for _, d := range m.devices {
		if device.NormalizeMAC(d.MACAddress) == norm {
			return d.DeepCopy(), nil
		}
	}
	return nil, device.ErrDeviceNotFound
}

func (m *memDeviceRepo) List(_ context.Context) ([]device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]device.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (m *memDeviceRepo) Create(_ context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.devices[d.ID]; exists {
		return device.ErrDeviceExists
	}
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *memDeviceRepo) Update(_ context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.devices[d.ID]
	if !ok {
		return device.ErrDeviceNotFound
	}
	if stored.Version != d.Version {
		return device.ErrVersionConflict
	}
	d.Version++
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *memDeviceRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return device.ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

// ─── In-Memory Schedule Repository ───

type memScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]*schedule.Schedule
}

func newMemScheduleRepo() *memScheduleRepo {
	return &memScheduleRepo{schedules: make(map[string]*schedule.Schedule)}
}

func (m *memScheduleRepo) GetByID(_ context.Context, id string) (*schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, schedule.ErrScheduleNotFound
	}
	return s.DeepCopy(), nil
}

func (m *memScheduleRepo) List(_ context.Context) ([]schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schedule.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, *s.DeepCopy())
	}
	return out, nil
}

func (m *memScheduleRepo) Create(_ context.Context, s *schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.schedules[s.ID]; exists {
		return schedule.ErrScheduleExists
	}
	m.schedules[s.ID] = s.DeepCopy()
	return nil
}

func (m *memScheduleRepo) Update(_ context.Context, s *schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[s.ID]; !ok {
		return schedule.ErrScheduleNotFound
	}
	m.schedules[s.ID] = s.DeepCopy()
	return nil
}

func (m *memScheduleRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return schedule.ErrScheduleNotFound
	}
	delete(m.schedules, id)
	return nil
}

// ─── In-Memory Alert Repository ───

type memAlertRepo struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (m *memAlertRepo) Create(_ context.Context, a *alert.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = "alr-test"
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *memAlertRepo) List(_ context.Context, limit, offset int) (*alert.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &alert.ListResult{Total: len(m.alerts), Limit: limit, Offset: offset}
	for i := offset; i < len(m.alerts) && len(result.Alerts) < limit; i++ {
		result.Alerts = append(result.Alerts, m.alerts[i])
	}
	if result.Alerts == nil {
		result.Alerts = []alert.Alert{}
	}
	return result, nil
}

// ─── In-Memory Activity Repository ───

type memActivityRepo struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (m *memActivityRepo) Create(_ context.Context, e *activity.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = "act-test"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memActivityRepo) List(_ context.Context, filter activity.Filter) (*activity.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var matched []activity.Entry
	for _, e := range m.entries {
		if filter.DeviceID != "" && e.DeviceID != filter.DeviceID {
			continue
		}
		if filter.TriggeredBy != "" && e.TriggeredBy != filter.TriggeredBy {
			continue
		}
		matched = append(matched, e)
	}

	result := &activity.ListResult{Total: len(matched), Limit: limit, Offset: filter.Offset}
	for i := filter.Offset; i < len(matched) && len(result.Entries) < limit; i++ {
		result.Entries = append(result.Entries, matched[i])
	}
	if result.Entries == nil {
		result.Entries = []activity.Entry{}
	}
	return result, nil
}

func (m *memActivityRepo) HasRecentMotion(_ context.Context, deviceID string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.DeviceID == deviceID && e.Action == activity.ActionMotion &&
			e.TriggeredBy == activity.TriggeredByPIR && !e.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// ─── Mock Publisher ───

type publishedCommand struct {
	mac   string
	gpio  int
	state bool
	seq   uint64
}

type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	commands  []publishedCommand
}

func (m *mockPublisher) PublishCommand(mac string, gpio int, state bool, seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, publishedCommand{mac, gpio, state, seq})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) commandCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}
