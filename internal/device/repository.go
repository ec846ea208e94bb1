package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Device, error)
	GetByMAC(ctx context.Context, mac string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	Create(ctx context.Context, d *Device) error

	// Update persists the device iff the stored version matches d.Version.
	// On success d.Version is incremented; a lost race returns
	// ErrVersionConflict.
	Update(ctx context.Context, d *Device) error

	Delete(ctx context.Context, id string) error
}

// deviceColumns is the SELECT column list for device queries.
const deviceColumns = `id, name, mac_address, room, switches, pir,
			queued_intents, version, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	dev, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return dev, nil
}

// GetByMAC retrieves a device by its MAC address (canonicalised).
func (r *SQLiteRepository) GetByMAC(ctx context.Context, mac string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE mac_address = ?`

	row := r.db.QueryRowContext(ctx, query, NormalizeMAC(mac))
	dev, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by mac: %w", err)
	}
	return dev, nil
}

// List retrieves all devices ordered by room then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY room, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create inserts a new device at version 1.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	switchesJSON, pirJSON, intentsJSON, err := marshalAggregates(d)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	d.Version = 1
	d.MACAddress = NormalizeMAC(d.MACAddress)

	query := `
		INSERT INTO devices (
			id, name, mac_address, room, switches, pir,
			queued_intents, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.MACAddress,
		d.Room,
		switchesJSON,
		pirJSON,
		intentsJSON,
		d.Version,
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update persists the device with a compare-and-swap on the version column.
// The whole aggregate (switch states and queued intents included) is written
// in a single statement, so a state change and its fallback intent commit
// atomically.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	switchesJSON, pirJSON, intentsJSON, err := marshalAggregates(d)
	if err != nil {
		return err
	}

	d.UpdatedAt = time.Now().UTC()
	d.MACAddress = NormalizeMAC(d.MACAddress)

	query := `
		UPDATE devices SET
			name = ?, mac_address = ?, room = ?, switches = ?, pir = ?,
			queued_intents = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	result, err := r.db.ExecContext(ctx, query,
		d.Name,
		d.MACAddress,
		d.Room,
		switchesJSON,
		pirJSON,
		intentsJSON,
		d.UpdatedAt.Format(time.RFC3339),
		d.ID,
		d.Version,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or another writer bumped the version.
		var exists int
		checkErr := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM devices WHERE id = ?", d.ID,
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("checking device existence: %w", checkErr)
		}
		if exists == 0 {
			return ErrDeviceNotFound
		}
		return ErrVersionConflict
	}

	d.Version++
	return nil
}

// Delete removes a device.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// marshalAggregates serialises the JSON columns of the device row.
func marshalAggregates(d *Device) (switches, pir, intents any, err error) {
	switchesJSON, err := json.Marshal(d.Switches)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshalling switches: %w", err)
	}
	if d.Switches == nil {
		switchesJSON = []byte("[]")
	}

	intentsJSON, err := json.Marshal(d.QueuedIntents)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshalling intents: %w", err)
	}
	if d.QueuedIntents == nil {
		intentsJSON = []byte("[]")
	}

	var pirJSON any
	if d.PIR != nil {
		b, err := json.Marshal(d.PIR)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshalling pir: %w", err)
		}
		pirJSON = string(b)
	}

	return string(switchesJSON), pirJSON, string(intentsJSON), nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanDevice.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device row including its JSON aggregate columns.
func scanDevice(s scanner) (*Device, error) {
	var (
		d            Device
		switchesJSON string
		pirJSON      sql.NullString
		intentsJSON  string
		createdAt    string
		updatedAt    string
	)

	if err := s.Scan(
		&d.ID, &d.Name, &d.MACAddress, &d.Room,
		&switchesJSON, &pirJSON, &intentsJSON,
		&d.Version, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(switchesJSON), &d.Switches); err != nil {
		return nil, fmt.Errorf("unmarshalling switches: %w", err)
	}
	if err := json.Unmarshal([]byte(intentsJSON), &d.QueuedIntents); err != nil {
		return nil, fmt.Errorf("unmarshalling intents: %w", err)
	}
	if pirJSON.Valid && pirJSON.String != "" {
		d.PIR = &PIRSensor{}
		if err := json.Unmarshal([]byte(pirJSON.String), d.PIR); err != nil {
			return nil, fmt.Errorf("unmarshalling pir: %w", err)
		}
	}

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &d, nil
}

// isUniqueConstraintError reports whether err is a SQLite unique violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
