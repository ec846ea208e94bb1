package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for schedule persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Schedule, error)
	List(ctx context.Context) ([]Schedule, error)
	Create(ctx context.Context, s *Schedule) error
	Update(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id string) error
}

// scheduleColumns is the SELECT column list for schedule queries.
const scheduleColumns = `id, name, recurrence, action, switches, enabled,
			check_holidays, respect_motion, timeout_minutes, last_run,
			created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed schedule repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a schedule by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("querying schedule by id: %w", err)
	}
	return s, nil
}

// List retrieves all schedules ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule row: %w", err)
		}
		schedules = append(schedules, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return schedules, nil
}

// Create inserts a new schedule.
func (r *SQLiteRepository) Create(ctx context.Context, s *Schedule) error {
	recurrenceJSON, switchesJSON, err := marshalAggregates(s)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	query := `
		INSERT INTO schedules (
			id, name, recurrence, action, switches, enabled,
			check_holidays, respect_motion, timeout_minutes, last_run,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Name, recurrenceJSON, s.Action, switchesJSON,
		boolToInt(s.Enabled), boolToInt(s.CheckHolidays), boolToInt(s.RespectMotion),
		s.TimeoutMinutes, nullableTime(s.LastRun),
		s.CreatedAt.Format(time.RFC3339),
		s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrScheduleExists
		}
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

// Update persists all mutable fields of a schedule.
func (r *SQLiteRepository) Update(ctx context.Context, s *Schedule) error {
	recurrenceJSON, switchesJSON, err := marshalAggregates(s)
	if err != nil {
		return err
	}

	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE schedules SET
			name = ?, recurrence = ?, action = ?, switches = ?, enabled = ?,
			check_holidays = ?, respect_motion = ?, timeout_minutes = ?,
			last_run = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		s.Name, recurrenceJSON, s.Action, switchesJSON,
		boolToInt(s.Enabled), boolToInt(s.CheckHolidays), boolToInt(s.RespectMotion),
		s.TimeoutMinutes, nullableTime(s.LastRun),
		s.UpdatedAt.Format(time.RFC3339),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// Delete removes a schedule.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func marshalAggregates(s *Schedule) (recurrence, switches string, err error) {
	recurrenceJSON, err := json.Marshal(s.Recurrence)
	if err != nil {
		return "", "", fmt.Errorf("marshalling recurrence: %w", err)
	}
	switchesJSON, err := json.Marshal(s.Switches)
	if err != nil {
		return "", "", fmt.Errorf("marshalling switches: %w", err)
	}
	if s.Switches == nil {
		switchesJSON = []byte("[]")
	}
	return string(recurrenceJSON), string(switchesJSON), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(sc scanner) (*Schedule, error) {
	var (
		s              Schedule
		recurrenceJSON string
		switchesJSON   string
		enabled        int
		checkHolidays  int
		respectMotion  int
		lastRun        sql.NullString
		createdAt      string
		updatedAt      string
	)

	if err := sc.Scan(
		&s.ID, &s.Name, &recurrenceJSON, &s.Action, &switchesJSON,
		&enabled, &checkHolidays, &respectMotion, &s.TimeoutMinutes,
		&lastRun, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(recurrenceJSON), &s.Recurrence); err != nil {
		return nil, fmt.Errorf("unmarshalling recurrence: %w", err)
	}
	if err := json.Unmarshal([]byte(switchesJSON), &s.Switches); err != nil {
		return nil, fmt.Errorf("unmarshalling switches: %w", err)
	}

	s.Enabled = enabled != 0
	s.CheckHolidays = checkHolidays != 0
	s.RespectMotion = respectMotion != 0

	if lastRun.Valid && lastRun.String != "" {
		t, err := time.Parse(time.RFC3339, lastRun.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_run: %w", err)
		}
		s.LastRun = &t
	}

	var err error
	if s.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &s, nil
}
