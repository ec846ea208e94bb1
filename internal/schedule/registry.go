package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Logger defines the logging interface used by the Registry.
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

// Runner executes a schedule when its cron entry fires. The engine package
// provides the production implementation.
type Runner interface {
	RunSchedule(scheduleID string)
}

// Registry provides schedule management with caching and cron registration.
// It wraps a Repository, keeps an in-memory cache for fast lookups, and
// holds exactly one cron entry per enabled schedule.
//
// All public methods are thread-safe.
type Registry struct {
	repo   Repository
	cron   *cron.Cron
	runner Runner

	mu    sync.RWMutex
	cache map[string]*Schedule     // Cached schedules by ID
	jobs  map[string]cron.EntryID  // Live cron entries by schedule ID

	logger Logger
}

// NewRegistry creates a schedule registry whose cron entries fire in the
// given location (the site's local timezone).
func NewRegistry(repo Repository, loc *time.Location) *Registry {
	return &Registry{
		repo:   repo,
		cron:   cron.New(cron.WithLocation(loc)),
		cache:  make(map[string]*Schedule),
		jobs:   make(map[string]cron.EntryID),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRunner sets the execution callback. Must be called before Start.
func (r *Registry) SetRunner(runner Runner) {
	r.runner = runner
}

// Start begins firing cron entries. Call after LoadAll.
func (r *Registry) Start() {
	r.cron.Start()
}

// Stop stops the cron runner and waits for in-flight jobs to finish.
func (r *Registry) Stop() {
	<-r.cron.Stop().Done()
}

// LoadAll loads all schedules from the repository into the cache and
// registers a cron entry for every enabled one. Call on startup.
func (r *Registry) LoadAll(ctx context.Context) error {
	schedules, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*Schedule, len(schedules))
	registered := 0
	for i := range schedules {
		s := schedules[i]
		r.cache[s.ID] = s.DeepCopy()
		if s.Enabled {
			if err := r.registerLocked(&s); err != nil {
				r.logger.Error("skipping unregistrable schedule",
					"schedule_id", s.ID, "error", err)
				continue
			}
			registered++
		}
	}

	r.logger.Info("schedules loaded", "count", len(schedules), "registered", registered)
	return nil
}

// GetSchedule retrieves a schedule by ID as a deep copy.
func (r *Registry) GetSchedule(_ context.Context, id string) (*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.cache[id]; ok {
		return s.DeepCopy(), nil
	}
	return nil, ErrScheduleNotFound
}

// ListSchedules retrieves all schedules from the cache as deep copies.
func (r *Registry) ListSchedules(_ context.Context) ([]Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schedules := make([]Schedule, 0, len(r.cache))
	for _, s := range r.cache {
		schedules = append(schedules, *s.DeepCopy())
	}
	return schedules, nil
}

// CreateSchedule validates, persists, caches, and (when enabled) registers a
// new schedule.
func (r *Registry) CreateSchedule(ctx context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = "sch-" + uuid.NewString()[:8]
	}
	if err := Validate(s); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache[s.ID] = s.DeepCopy()
	if s.Enabled {
		if err := r.registerLocked(s); err != nil {
			return err
		}
	}

	r.logger.Info("schedule created",
		"id", s.ID, "name", s.Name, "enabled", s.Enabled)
	return nil
}

// UpdateSchedule validates and persists a changed schedule, then replaces
// its cron registration: the old entry is always cancelled, and a new one is
// added only if the schedule is still enabled. Recurrence changes therefore
// take effect immediately.
func (r *Registry) UpdateSchedule(ctx context.Context, s *Schedule) error {
	if err := Validate(s); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache[s.ID] = s.DeepCopy()
	r.unregisterLocked(s.ID)
	if s.Enabled {
		if err := r.registerLocked(s); err != nil {
			return err
		}
	}

	r.logger.Info("schedule updated",
		"id", s.ID, "name", s.Name, "enabled", s.Enabled)
	return nil
}

// DeleteSchedule removes a schedule from persistence, cache, and cron.
func (r *Registry) DeleteSchedule(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.cache, id)
	r.unregisterLocked(id)

	r.logger.Info("schedule deleted", "id", id)
	return nil
}

// CompleteRun records a finished execution: LastRun is set, and one-shot
// schedules are disabled and unregistered so they never fire again.
func (r *Registry) CompleteRun(ctx context.Context, id string, ranAt time.Time) error {
	r.mu.RLock()
	cached, ok := r.cache[id]
	r.mu.RUnlock()
	if !ok {
		return ErrScheduleNotFound
	}

	s := cached.DeepCopy()
	t := ranAt.UTC()
	s.LastRun = &t
	if s.IsOnce() {
		s.Enabled = false
	}

	if err := r.repo.Update(ctx, s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache[s.ID] = s
	if s.IsOnce() {
		r.unregisterLocked(s.ID)
		r.logger.Info("one-shot schedule completed and disabled", "id", s.ID)
	}
	return nil
}

// NextRun returns the next fire time for a registered schedule.
// The zero time and false are returned when the schedule has no live entry.
func (r *Registry) NextRun(id string) (time.Time, bool) {
	r.mu.RLock()
	entryID, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}

	entry := r.cron.Entry(entryID)
	if entry.ID == 0 {
		return time.Time{}, false
	}
	return entry.Next, true
}

// RegisteredCount returns the number of live cron entries.
func (r *Registry) RegisteredCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// registerLocked adds a cron entry for the schedule. Caller holds mu.
func (r *Registry) registerLocked(s *Schedule) error {
	spec, err := CronSpec(s.Recurrence)
	if err != nil {
		return err
	}

	id := s.ID
	entryID, err := r.cron.AddFunc(spec, func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("schedule run panicked",
					"schedule_id", id, "panic", fmt.Sprintf("%v", rec))
			}
		}()
		if r.runner != nil {
			r.runner.RunSchedule(id)
		}
	})
	if err != nil {
		return fmt.Errorf("registering cron entry for %s: %w", id, err)
	}

	r.jobs[id] = entryID
	r.logger.Debug("cron entry registered", "schedule_id", id, "spec", spec)
	return nil
}

// unregisterLocked removes the schedule's cron entry, if any. Caller holds mu.
func (r *Registry) unregisterLocked(id string) {
	if entryID, ok := r.jobs[id]; ok {
		r.cron.Remove(entryID)
		delete(r.jobs, id)
		r.logger.Debug("cron entry removed", "schedule_id", id)
	}
}
