package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/classpower/classpower-core/internal/activity"
	"github.com/classpower/classpower-core/internal/alert"
	"github.com/classpower/classpower-core/internal/device"
	"github.com/classpower/classpower-core/internal/dispatch"
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
	key := device.NormalizeMAC(mac)
	for _, d := range m.devices {
		if d.MACAddress == key {
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
	d.Version = 1
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
	delete(m.schedules, id)
	return nil
}

// ─── Mock Collaborators ───

type memActivityRepo struct {
	mu      sync.Mutex
	entries []activity.Entry

	// motionAt controls HasRecentMotion per device.
	motionAt map[string]time.Time
}

func newMemActivityRepo() *memActivityRepo {
	return &memActivityRepo{motionAt: make(map[string]time.Time)}
}

func (m *memActivityRepo) Create(_ context.Context, e *activity.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, *e)
	if e.TriggeredBy == activity.TriggeredByPIR && e.Action == activity.ActionMotion {
		m.motionAt[e.DeviceID] = e.CreatedAt
	}
	return nil
}

func (m *memActivityRepo) List(_ context.Context, _ activity.Filter) (*activity.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &activity.ListResult{Entries: append([]activity.Entry{}, m.entries...), Total: len(m.entries)}, nil
}

func (m *memActivityRepo) HasRecentMotion(_ context.Context, deviceID string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.motionAt[deviceID]
	return ok && !at.Before(since), nil
}

func (m *memActivityRepo) byTrigger(trigger string) []activity.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []activity.Entry
	for _, e := range m.entries {
		if e.TriggeredBy == trigger {
			out = append(out, e)
		}
	}
	return out
}

type memAlertSink struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (m *memAlertSink) Raise(_ context.Context, a *alert.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *memAlertSink) byType(typ string) []alert.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []alert.Alert
	for _, a := range m.alerts {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

type memHub struct {
	mu     sync.Mutex
	events []struct {
		Channel string
		Payload any
	}
}

func (m *memHub) Broadcast(channel string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, struct {
		Channel string
		Payload any
	}{channel, payload})
}

func (m *memHub) onChannel(channel string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, e := range m.events {
		if e.Channel == channel {
			out = append(out, e.Payload)
		}
	}
	return out
}

type stubHolidays struct{ holiday bool }

func (s stubHolidays) IsHoliday(time.Time) bool { return s.holiday }
func (s stubHolidays) HolidayName(time.Time) (string, bool) {
	if s.holiday {
		return "Founders Day", true
	}
	return "", false
}

type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	calls     []publishCall
	// onPublish, when set, runs after each successful publish.
	onPublish func(publishCall)
}

type publishCall struct {
	mac   string
	gpio  int
	state bool
	seq   uint64
}

func (m *mockPublisher) PublishCommand(mac string, gpio int, state bool, seq uint64) error {
	call := publishCall{mac, gpio, state, seq}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	hook := m.onPublish
	m.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ─── Harness ───

type harness struct {
	engine     *Engine
	devices    *device.Registry
	schedules  *schedule.Registry
	activities *memActivityRepo
	alerts     *memAlertSink
	hub        *memHub
	publisher  *mockPublisher
	autoOff    *AutoOffManager

	deviceRepo *memDeviceRepo
	now        time.Time

	// fire holds pending auto-off callbacks; tests invoke them manually.
	fireMu sync.Mutex
	fires  []func()
}

func setupHarness(t *testing.T, holidays HolidayChecker) *harness {
	t.Helper()

	h := &harness{
		deviceRepo: newMemDeviceRepo(),
		activities: newMemActivityRepo(),
		alerts:     &memAlertSink{},
		hub:        &memHub{},
		publisher:  &mockPublisher{connected: true},
		now:        time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC), // a Monday
	}

	h.deviceRepo.devices["dev-1"] = &device.Device{
		ID:         "dev-1",
		Name:       "Lab 2 board",
		MACAddress: "a4:cf:12:34:56:78",
		Room:       "Lab 2",
		Switches: []device.Switch{
			{ID: "sw-1", Name: "Lights", Type: device.SwitchTypeLight, GPIO: 4},
			{ID: "sw-2", Name: "Rack", Type: device.SwitchTypeSocket, GPIO: 5, DontAutoOff: true},
		},
		PIR:     &device.PIRSensor{IsActive: true},
		Version: 1,
	}

	h.devices = device.NewRegistry(h.deviceRepo)
	if err := h.devices.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	h.schedules = schedule.NewRegistry(newMemScheduleRepo(), time.UTC)

	dispatcher := dispatch.NewDispatcher(h.publisher, dispatch.NewSequencer())
	resolver := NewResolver(h.activities, h.alerts, 5*time.Minute)

	h.autoOff = NewAutoOffManager(h.devices, dispatcher, h.activities, h.alerts, h.hub)
	h.autoOff.after = func(_ time.Duration, f func()) {
		h.fireMu.Lock()
		h.fires = append(h.fires, f)
		h.fireMu.Unlock()
	}

	h.engine = New(Config{
		Devices:    h.devices,
		Schedules:  h.schedules,
		Dispatcher: dispatcher,
		Resolver:   resolver,
		AutoOff:    h.autoOff,
		Activities: h.activities,
		Holidays:   holidays,
		Hub:        h.hub,
	})
	h.engine.now = func() time.Time { return h.now }

	h.schedules.SetRunner(h.engine)
	return h
}

// firePending runs and clears all pending auto-off callbacks.
func (h *harness) firePending() {
	h.fireMu.Lock()
	fires := h.fires
	h.fires = nil
	h.fireMu.Unlock()
	for _, f := range fires {
		f()
	}
}

func (h *harness) mustCreateSchedule(t *testing.T, s *schedule.Schedule) {
	t.Helper()
	if err := h.schedules.CreateSchedule(context.Background(), s); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
}

func offSchedule() *schedule.Schedule {
	return &schedule.Schedule{
		ID:         "sch-off",
		Name:       "Evening shutdown",
		Recurrence: schedule.Recurrence{Type: schedule.RecurrenceDaily, Time: "17:30"},
		Action:     schedule.ActionOff,
		Switches:   []schedule.SwitchRef{{DeviceID: "dev-1", SwitchID: "sw-1"}},
		Enabled:    true,
	}
}

// ─── Conflict Resolver ───

func TestExecute_MotionVetoesOff(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	// Switch is on; motion 2 minutes ago.
	if _, err := h.devices.SetSwitchState(ctx, "dev-1", "sw-1", true, false); err != nil {
		t.Fatalf("seeding state: %v", err)
	}
	h.activities.motionAt["dev-1"] = h.now.Add(-2 * time.Minute)

	s := offSchedule()
	s.RespectMotion = true
	h.mustCreateSchedule(t, s)

	summary, err := h.engine.Execute(ctx, s)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !summary.Switches[0].Vetoed {
		t.Error("off-action should be vetoed")
	}

	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if !dev.Switch("sw-1").State {
		t.Error("vetoed switch must stay on")
	}

	overrides := h.alerts.byType(alert.TypeMotionOverride)
	if len(overrides) != 1 {
		t.Fatalf("motion_override alerts = %d, want 1", len(overrides))
	}
	if overrides[0].Metadata["schedule_id"] != s.ID {
		t.Errorf("alert metadata = %v", overrides[0].Metadata)
	}
}

func TestExecute_StaleMotionDoesNotVeto(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	if _, err := h.devices.SetSwitchState(ctx, "dev-1", "sw-1", true, false); err != nil {
		t.Fatalf("seeding state: %v", err)
	}
	h.activities.motionAt["dev-1"] = h.now.Add(-10 * time.Minute)

	s := offSchedule()
	s.RespectMotion = true
	h.mustCreateSchedule(t, s)

	summary, err := h.engine.Execute(ctx, s)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary.Switches[0].Vetoed {
		t.Error("10-minute-old motion must not veto")
	}

	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if dev.Switch("sw-1").State {
		t.Error("switch should be off")
	}
	if len(h.alerts.byType(alert.TypeMotionOverride)) != 0 {
		t.Error("no alert expected without a veto")
	}
}

func TestExecute_NoPIRNoVeto(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	// Deactivate the PIR; even fresh motion records must be ignored.
	_, err := h.devices.Mutate(ctx, "dev-1", func(d *device.Device) error {
		d.PIR.IsActive = false
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	h.activities.motionAt["dev-1"] = h.now.Add(-time.Minute)

	s := offSchedule()
	s.RespectMotion = true
	h.mustCreateSchedule(t, s)

	summary, _ := h.engine.Execute(ctx, s)
	if summary.Switches[0].Vetoed {
		t.Error("device without active PIR can never veto")
	}
}

// ─── Holiday Short-Circuit ───

func TestExecute_HolidayShortCircuit(t *testing.T) {
	h := setupHarness(t, stubHolidays{holiday: true})
	ctx := context.Background()

	s := offSchedule()
	s.CheckHolidays = true
	h.mustCreateSchedule(t, s)

	summary, err := h.engine.Execute(ctx, s)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary != nil {
		t.Error("holiday execution should return no summary")
	}

	if h.publisher.callCount() != 0 {
		t.Error("zero dispatches expected on a holiday")
	}
	got, _ := h.schedules.GetSchedule(ctx, s.ID)
	if got.LastRun != nil {
		t.Error("last_run must stay unchanged on a holiday skip")
	}
	if len(h.hub.onChannel(ChannelScheduleExecuted)) != 0 {
		t.Error("no summary broadcast expected on a holiday")
	}
}

func TestExecute_HolidayIgnoredWhenUnchecked(t *testing.T) {
	h := setupHarness(t, stubHolidays{holiday: true})
	ctx := context.Background()

	s := offSchedule() // CheckHolidays false
	h.mustCreateSchedule(t, s)

	summary, err := h.engine.Execute(ctx, s)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary == nil {
		t.Fatal("schedule without holiday check must run")
	}
}

// ─── Pipeline ───

func TestExecute_OnActionDispatchesAndRecords(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	s := &schedule.Schedule{
		ID:         "sch-on",
		Name:       "Morning lights",
		Recurrence: schedule.Recurrence{Type: schedule.RecurrenceDaily, Time: "08:00"},
		Action:     schedule.ActionOn,
		Switches:   []schedule.SwitchRef{{DeviceID: "dev-1", SwitchID: "sw-1"}},
		Enabled:    true,
	}
	h.mustCreateSchedule(t, s)

	summary, err := h.engine.Execute(ctx, s)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := summary.Switches[0]
	if !res.OK || !res.Dispatched {
		t.Errorf("result = %+v", res)
	}

	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if !dev.Switch("sw-1").State {
		t.Error("state not written")
	}
	if len(dev.QueuedIntents) != 0 {
		t.Error("no intent expected on successful dispatch")
	}

	entries := h.activities.byTrigger(activity.TriggeredBySchedule)
	if len(entries) != 1 {
		t.Fatalf("schedule activity entries = %d, want 1", len(entries))
	}
	if entries[0].Metadata["schedule_id"] != s.ID {
		t.Errorf("metadata = %v", entries[0].Metadata)
	}

	got, _ := h.schedules.GetSchedule(ctx, s.ID)
	if got.LastRun == nil || !got.LastRun.Equal(h.now) {
		t.Errorf("last_run = %v, want %v", got.LastRun, h.now)
	}

	changes := h.hub.onChannel(ChannelStateChanged)
	if len(changes) != 1 {
		t.Fatalf("state broadcasts = %d, want 1", len(changes))
	}
	if sc := changes[0].(StateChange); sc.Source != SourceScheduleUpdate {
		t.Errorf("source = %q, want %q", sc.Source, SourceScheduleUpdate)
	}
	if len(h.hub.onChannel(ChannelScheduleExecuted)) != 1 {
		t.Error("missing execution summary broadcast")
	}
}

func TestExecute_DispatchFailureQueuesIntent(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	h.publisher.connected = false
	ctx := context.Background()

	s := offSchedule()
	s.Action = schedule.ActionOn
	h.mustCreateSchedule(t, s)

	summary, err := h.engine.Execute(ctx, s)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := summary.Switches[0]
	if !res.OK || res.Dispatched {
		t.Errorf("result = %+v, want persisted but not dispatched", res)
	}

	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if !dev.Switch("sw-1").State {
		t.Error("state must be written even when the board is unreachable")
	}
	if len(dev.QueuedIntents) != 1 {
		t.Fatalf("intents = %d, want 1", len(dev.QueuedIntents))
	}
	if dev.QueuedIntents[0].SwitchGPIO != 4 || !dev.QueuedIntents[0].DesiredState {
		t.Errorf("intent = %+v", dev.QueuedIntents[0])
	}
}

func TestExecute_PerSwitchErrorBoundary(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	s := offSchedule()
	s.Action = schedule.ActionOn
	s.Switches = []schedule.SwitchRef{
		{DeviceID: "missing", SwitchID: "sw-1"},
		{DeviceID: "dev-1", SwitchID: "missing"},
		{DeviceID: "dev-1", SwitchID: "sw-1"},
	}
	h.mustCreateSchedule(t, s)

	summary, err := h.engine.Execute(ctx, s)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(summary.Switches) != 3 {
		t.Fatalf("results = %d, want 3", len(summary.Switches))
	}
	if summary.Switches[0].OK || summary.Switches[0].Error == "" {
		t.Errorf("missing device result = %+v", summary.Switches[0])
	}
	if summary.Switches[1].OK || summary.Switches[1].Error == "" {
		t.Errorf("missing switch result = %+v", summary.Switches[1])
	}
	if !summary.Switches[2].OK {
		t.Errorf("healthy switch result = %+v, must still execute", summary.Switches[2])
	}

	// Bookkeeping runs despite the per-switch failures.
	got, _ := h.schedules.GetSchedule(ctx, s.ID)
	if got.LastRun == nil {
		t.Error("last_run not set")
	}
}

func TestExecute_OnceDisablesAfterRun(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	s := offSchedule()
	s.Action = schedule.ActionOn
	s.Recurrence = schedule.Recurrence{Type: schedule.RecurrenceOnce, Time: "08:00"}
	h.mustCreateSchedule(t, s)

	if h.schedules.RegisteredCount() != 1 {
		t.Fatal("one-shot schedule not registered")
	}

	if _, err := h.engine.Execute(ctx, s); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, _ := h.schedules.GetSchedule(ctx, s.ID)
	if got.Enabled {
		t.Error("one-shot schedule must disable itself")
	}
	if h.schedules.RegisteredCount() != 0 {
		t.Error("one-shot schedule must have no timer left")
	}
	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if !dev.Switch("sw-1").State {
		t.Error("state not flipped")
	}
}

// ─── Auto-Off ───

func TestExecute_OnWithTimeoutArmsAutoOff(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	s := offSchedule()
	s.Action = schedule.ActionOn
	s.TimeoutMinutes = 1
	h.mustCreateSchedule(t, s)

	if _, err := h.engine.Execute(ctx, s); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	before := h.publisher.callCount()
	h.firePending()

	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if dev.Switch("sw-1").State {
		t.Error("auto-off did not turn the switch off")
	}
	if h.publisher.callCount() != before+1 {
		t.Error("auto-off must dispatch the off command")
	}

	sys := h.activities.byTrigger(activity.TriggeredBySystem)
	if len(sys) != 1 {
		t.Fatalf("system entries = %d, want 1", len(sys))
	}
	if sys[0].Action != "off" || sys[0].Metadata["reason"] != "timeout" {
		t.Errorf("entry = %+v", sys[0])
	}

	changes := h.hub.onChannel(ChannelStateChanged)
	last := changes[len(changes)-1].(StateChange)
	if last.Source != SourceAutoOff {
		t.Errorf("source = %q, want %q", last.Source, SourceAutoOff)
	}
}

func TestAutoOff_NoOpWhenAlreadyOff(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	if _, err := h.devices.SetSwitchState(ctx, "dev-1", "sw-1", true, false); err != nil {
		t.Fatalf("seeding state: %v", err)
	}
	h.autoOff.Arm("dev-1", "sw-1", time.Minute)

	// Manual off before the timer fires.
	if _, err := h.devices.SetSwitchState(ctx, "dev-1", "sw-1", false, false); err != nil {
		t.Fatalf("manual off: %v", err)
	}
	h.firePending()

	if h.publisher.callCount() != 0 {
		t.Error("stale auto-off fire must not dispatch")
	}
	if len(h.activities.byTrigger(activity.TriggeredBySystem)) != 0 {
		t.Error("stale auto-off fire must not log an action")
	}
}

func TestAutoOff_ProtectedSwitchRaisesAlert(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	// sw-2 is flagged dont_auto_off.
	if _, err := h.devices.SetSwitchState(ctx, "dev-1", "sw-2", true, false); err != nil {
		t.Fatalf("seeding state: %v", err)
	}
	h.autoOff.Arm("dev-1", "sw-2", time.Minute)
	h.firePending()

	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if !dev.Switch("sw-2").State {
		t.Error("protected switch must stay on")
	}

	timeouts := h.alerts.byType(alert.TypeTimeout)
	if len(timeouts) != 1 {
		t.Fatalf("timeout alerts = %d, want 1", len(timeouts))
	}
	if timeouts[0].Severity != alert.SeverityHigh {
		t.Errorf("severity = %q, want high", timeouts[0].Severity)
	}
	if h.publisher.callCount() != 0 {
		t.Error("protected switch must not be dispatched off")
	}
}

// ─── Manual Toggle ───

func TestManualToggle(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	dev, err := h.engine.ManualToggle(ctx, "dev-1", "sw-1", true, 30)
	if err != nil {
		t.Fatalf("ManualToggle: %v", err)
	}
	if !dev.Switch("sw-1").State {
		t.Error("state not set")
	}

	manual := h.activities.byTrigger(activity.TriggeredByManual)
	if len(manual) != 1 || manual[0].Action != "on" {
		t.Errorf("manual entries = %+v", manual)
	}

	changes := h.hub.onChannel(ChannelStateChanged)
	if len(changes) != 1 || changes[0].(StateChange).Source != SourceManual {
		t.Errorf("broadcasts = %+v", changes)
	}

	// Timeout arms an auto-off that later turns it back off.
	h.firePending()
	dev, _ = h.devices.GetDevice(ctx, "dev-1")
	if dev.Switch("sw-1").State {
		t.Error("auto-off armed by manual toggle did not fire")
	}
}

// ─── Intent Replay ───

func TestReplayIntents(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	// Two queued intents from an offline period.
	h.publisher.connected = false
	if _, err := h.devices.SetSwitchState(ctx, "dev-1", "sw-1", true, true); err != nil {
		t.Fatalf("seeding intent: %v", err)
	}
	if _, err := h.devices.SetSwitchState(ctx, "dev-1", "sw-2", false, true); err != nil {
		t.Fatalf("seeding intent: %v", err)
	}

	h.publisher.connected = true
	if err := h.engine.ReplayIntents(ctx, "A4:CF:12:34:56:78"); err != nil {
		t.Fatalf("ReplayIntents: %v", err)
	}

	if h.publisher.callCount() != 2 {
		t.Errorf("dispatches = %d, want 2", h.publisher.callCount())
	}
	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if len(dev.QueuedIntents) != 0 {
		t.Errorf("intents = %d, want all cleared", len(dev.QueuedIntents))
	}
}

func TestReplayIntents_IntentQueuedMidReplaySurvives(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	h.publisher.connected = false
	if _, err := h.devices.SetSwitchState(ctx, "dev-1", "sw-1", true, true); err != nil {
		t.Fatalf("seeding intent: %v", err)
	}

	// The board flaps: while the queued "on" is in flight, a newer "off"
	// for the same gpio arrives. Delivering the old intent must not erase
	// the new one.
	h.publisher.connected = true
	h.publisher.onPublish = func(publishCall) {
		h.publisher.onPublish = nil
		if _, err := h.devices.Mutate(ctx, "dev-1", func(d *device.Device) error {
			d.QueueIntent(4, false, time.Now().UTC().Add(time.Second))
			return nil
		}); err != nil {
			t.Errorf("queueing intent mid-replay: %v", err)
		}
	}

	if err := h.engine.ReplayIntents(ctx, "a4:cf:12:34:56:78"); err != nil {
		t.Fatalf("ReplayIntents: %v", err)
	}

	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if len(dev.QueuedIntents) != 1 {
		t.Fatalf("intents = %d, want the newer one kept", len(dev.QueuedIntents))
	}
	if dev.QueuedIntents[0].DesiredState {
		t.Error("surviving intent should carry the newer desired state (off)")
	}
}

func TestReplayIntents_FailedDeliveryStaysQueued(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	h.publisher.connected = false
	if _, err := h.devices.SetSwitchState(ctx, "dev-1", "sw-1", true, true); err != nil {
		t.Fatalf("seeding intent: %v", err)
	}

	// Still offline at replay time.
	if err := h.engine.ReplayIntents(ctx, "a4:cf:12:34:56:78"); err != nil {
		t.Fatalf("ReplayIntents: %v", err)
	}

	dev, _ := h.devices.GetDevice(ctx, "dev-1")
	if len(dev.QueuedIntents) != 1 {
		t.Error("undelivered intent must stay queued")
	}
}

// ─── Motion Ingestion ───

func TestRecordMotion_FeedsResolver(t *testing.T) {
	h := setupHarness(t, stubHolidays{})
	ctx := context.Background()

	if err := h.engine.RecordMotion(ctx, "dev-1"); err != nil {
		t.Fatalf("RecordMotion: %v", err)
	}

	moved, err := h.activities.HasRecentMotion(ctx, "dev-1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("HasRecentMotion: %v", err)
	}
	if !moved {
		t.Error("recorded motion not visible to the resolver")
	}
}
