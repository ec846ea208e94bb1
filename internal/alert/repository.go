package alert

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for alert persistence.
type Repository interface {
	Create(ctx context.Context, a *Alert) error
	List(ctx context.Context, limit, offset int) (*ListResult, error)
}

// ListResult contains paginated alerts.
type ListResult struct {
	Alerts []Alert `json:"alerts"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// SQLiteRepository stores alerts in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new alert repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new alert. ID, Severity and CreatedAt get defaults when
// empty.
func (r *SQLiteRepository) Create(ctx context.Context, a *Alert) error {
	if a.ID == "" {
		a.ID = "alr-" + uuid.NewString()[:8]
	}
	if a.Severity == "" {
		a.Severity = SeverityMedium
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var metadataJSON *string
	if a.Metadata != nil {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling alert metadata: %w", err)
		}
		s := string(b)
		metadataJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO security_alerts (id, type, severity, message, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Severity, a.Message, metadataJSON,
		a.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// List returns alerts, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, limit, offset int) (*ListResult, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM security_alerts").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting alerts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, severity, message, metadata, created_at
		 FROM security_alerts ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var metadataJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&a.ID, &a.Type, &a.Severity, &a.Message,
			&metadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}

		if metadataJSON.Valid && metadataJSON.String != "" {
			var metadata map[string]any
			if json.Unmarshal([]byte(metadataJSON.String), &metadata) == nil {
				a.Metadata = metadata
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing alert timestamp %q: %w", createdAt, err)
		}
		a.CreatedAt = t

		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}

	if alerts == nil {
		alerts = []Alert{}
	}

	return &ListResult{Alerts: alerts, Total: total, Limit: limit, Offset: offset}, nil
}
