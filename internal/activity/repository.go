// Package activity provides access to the activity_log table: the record of
// every switch action and motion event, and the query layer the conflict
// resolver uses to find recent motion.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TriggeredBy values recorded against activity entries.
const (
	TriggeredBySchedule = "schedule"
	TriggeredBySystem   = "system"
	TriggeredByManual   = "manual"
	TriggeredByPIR      = "pir"
)

// ActionMotion is the action recorded when a PIR sensor reports movement.
// Switch entries carry "on" or "off" instead.
const ActionMotion = "motion"

// Entry represents a single activity log row.
type Entry struct {
	ID          string         `json:"id"`
	DeviceID    string         `json:"device_id"`
	SwitchID    string         `json:"switch_id,omitempty"`
	Action      string         `json:"action"`
	TriggeredBy string         `json:"triggered_by"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Filter controls which activity entries to return.
type Filter struct {
	DeviceID    string // optional: filter by device
	TriggeredBy string // optional: filter by trigger source
	Limit       int    // default 50, max 200
	Offset      int    // pagination offset
}

// ListResult contains the paginated activity results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for activity log operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)

	// HasRecentMotion reports whether a motion event was recorded for the
	// device at or after the cutoff.
	HasRecentMotion(ctx context.Context, deviceID string, since time.Time) (bool, error)
}

// SQLiteRepository stores activity entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new activity log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new activity entry. The ID and CreatedAt are generated if
// empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "act-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var metadataJSON *string
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling activity metadata: %w", err)
		}
		s := string(b)
		metadataJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, device_id, switch_id, action, triggered_by, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DeviceID,
		nullableString(e.SwitchID),
		e.Action, e.TriggeredBy, metadataJSON,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting activity entry: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns activity entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.TriggeredBy != "" {
		conditions = append(conditions, "triggered_by = ?")
		args = append(args, filter.TriggeredBy)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activity_log %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting activity entries: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, device_id, switch_id, action, triggered_by, metadata, created_at FROM activity_log %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var switchID, metadataJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.DeviceID, &switchID,
			&e.Action, &e.TriggeredBy, &metadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}

		if switchID.Valid {
			e.SwitchID = switchID.String
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			var metadata map[string]any
			if json.Unmarshal([]byte(metadataJSON.String), &metadata) == nil {
				e.Metadata = metadata
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing activity timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity entries: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// HasRecentMotion reports whether the device logged a motion event at or
// after the cutoff. Backed by the (device_id, triggered_by, created_at)
// index, so this stays cheap even with a large log.
func (r *SQLiteRepository) HasRecentMotion(ctx context.Context, deviceID string, since time.Time) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_log
		 WHERE device_id = ? AND triggered_by = ? AND action = ? AND created_at >= ?`,
		deviceID, TriggeredByPIR, ActionMotion, since.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("querying recent motion: %w", err)
	}
	return count > 0, nil
}
