package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DeviceRepository stores stable device ids by name.
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository creates a new [DeviceRepository] with the given database connection
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// DeviceID returns the id stored under name and whether one exists.
func (r *DeviceRepository) DeviceID(ctx context.Context, name string) (string, bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT device_id FROM devices WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query device: %w", err)
	}
	return id, true, nil
}

// SaveDevice stores id under name unless a device already exists there, and returns the stored id.
func (r *DeviceRepository) SaveDevice(ctx context.Context, name, id string) (string, error) {
	var stored string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO devices (name, device_id) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, name, id); err != nil {
			return fmt.Errorf("failed to insert device: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `SELECT device_id FROM devices WHERE name = ?`, name).Scan(&stored); err != nil {
			return fmt.Errorf("failed to query device: %w", err)
		}
		return nil
	})
	return stored, err
}

// DeleteDevice forgets the device stored under name.
func (r *DeviceRepository) DeleteDevice(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}
