package schedule

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE schedules (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			recurrence      TEXT NOT NULL,
			action          TEXT NOT NULL CHECK (action IN ('on', 'off')),
			switches        TEXT NOT NULL DEFAULT '[]',
			enabled         INTEGER NOT NULL DEFAULT 1,
			check_holidays  INTEGER NOT NULL DEFAULT 0,
			respect_motion  INTEGER NOT NULL DEFAULT 0,
			timeout_minutes INTEGER NOT NULL DEFAULT 0,
			last_run        TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		) STRICT;`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return db
}

func TestRepository_RoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	s := &Schedule{
		ID:   "sch-1",
		Name: "Evening shutdown",
		Recurrence: Recurrence{
			Type: RecurrenceWeekly,
			Time: "17:30",
			Days: []int{1, 2, 3, 4, 5},
		},
		Action: ActionOff,
		Switches: []SwitchRef{
			{DeviceID: "dev-1", SwitchID: "sw-1"},
			{DeviceID: "dev-2", SwitchID: "sw-1"},
		},
		Enabled:       true,
		CheckHolidays: true,
		RespectMotion: true,
	}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, "sch-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Recurrence.Type != RecurrenceWeekly || len(got.Recurrence.Days) != 5 {
		t.Errorf("recurrence = %+v", got.Recurrence)
	}
	if len(got.Switches) != 2 {
		t.Errorf("switches = %d, want 2", len(got.Switches))
	}
	if !got.CheckHolidays || !got.RespectMotion {
		t.Error("flags not round-tripped")
	}
	if got.LastRun != nil {
		t.Error("last_run should start nil")
	}
}

func TestRepository_UpdateLastRun(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	s := validSchedule()
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ranAt := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	s.LastRun = &ranAt
	s.Enabled = false
	if err := repo.Update(ctx, s); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := repo.GetByID(ctx, s.ID)
	if got.LastRun == nil || !got.LastRun.Equal(ranAt) {
		t.Errorf("last_run = %v, want %v", got.LastRun, ranAt)
	}
	if got.Enabled {
		t.Error("enabled flag not persisted")
	}
}

func TestRepository_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("get err = %v, want ErrScheduleNotFound", err)
	}
	if err := repo.Update(ctx, validSchedule()); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("update err = %v, want ErrScheduleNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("delete err = %v, want ErrScheduleNotFound", err)
	}
}

func TestRepository_DuplicateID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, validSchedule()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, validSchedule()); !errors.Is(err, ErrScheduleExists) {
		t.Errorf("err = %v, want ErrScheduleExists", err)
	}
}

func TestRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := validSchedule()
	a.ID, a.Name = "sch-b", "Zebra"
	b := validSchedule()
	b.ID, b.Name = "sch-a", "Alpha"
	for _, s := range []*Schedule{a, b} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	schedules, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(schedules) != 2 {
		t.Fatalf("len = %d, want 2", len(schedules))
	}
	if schedules[0].Name != "Alpha" {
		t.Errorf("first = %q, want name ordering", schedules[0].Name)
	}
}
