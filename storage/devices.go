package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sprig/models"
)

// DeviceStore is the durable device registry. It is the sole owner of
// threshold and mode state; all mutation goes through its methods.
type DeviceStore struct {
	db *sql.DB
}

func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceColumns = `device_id, name, location, auto_mode, is_online, last_seen,
	moisture_threshold_low, moisture_threshold_high, notifications_enabled, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var (
		d        models.Device
		lastSeen sql.NullInt64
		created  int64
	)
	err := row.Scan(
		&d.DeviceID, &d.Name, &d.Location, &d.AutoMode, &d.IsOnline, &lastSeen,
		&d.Settings.MoistureThresholdLow, &d.Settings.MoistureThresholdHigh,
		&d.Settings.NotificationsEnabled, &created,
	)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t := time.Unix(lastSeen.Int64, 0).UTC()
		d.LastSeen = &t
	}
	d.CreatedAt = time.Unix(created, 0).UTC()
	return &d, nil
}

func (s *DeviceStore) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = ?`, deviceID)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

func (s *DeviceStore) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var devices []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// UpsertOnSighting records a sighting for deviceID. An unknown device is
// auto-provisioned with a generated name, default settings, isOnline=true
// and lastSeen=now; a known device just gets its lastSeen/isOnline bumped.
func (s *DeviceStore) UpsertOnSighting(ctx context.Context, deviceID string) (*models.Device, error) {
	now := time.Now().UTC()
	defaults := models.DefaultSettings()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, name, auto_mode, is_online, last_seen,
			moisture_threshold_low, moisture_threshold_high, notifications_enabled, created_at)
		VALUES (?, ?, 1, 1, ?, ?, ?, 1, ?)
		ON CONFLICT(device_id) DO UPDATE SET is_online = 1, last_seen = excluded.last_seen`,
		deviceID, models.DeviceNameFor(deviceID), now.Unix(),
		defaults.MoistureThresholdLow, defaults.MoistureThresholdHigh, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert device sighting: %w", err)
	}
	return s.GetDevice(ctx, deviceID)
}

// MarkSeen bumps lastSeen/isOnline for an existing device. Unlike
// UpsertOnSighting it never provisions.
func (s *DeviceStore) MarkSeen(ctx context.Context, deviceID string) (*models.Device, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET is_online = 1, last_seen = ? WHERE device_id = ?`,
		time.Now().UTC().Unix(), deviceID)
	if err != nil {
		return nil, fmt.Errorf("mark device seen: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetDevice(ctx, deviceID)
}

func (s *DeviceStore) SetMode(ctx context.Context, deviceID string, autoMode bool) (*models.Device, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET auto_mode = ? WHERE device_id = ?`, autoMode, deviceID)
	if err != nil {
		return nil, fmt.Errorf("set device mode: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetDevice(ctx, deviceID)
}

func validateThresholds(low, high float64) error {
	if low < 0 || low > 100 || high < 0 || high > 100 {
		return validationErrorf("moisture thresholds must be within 0-100, got %.1f/%.1f", low, high)
	}
	if low >= high {
		return validationErrorf("moistureThresholdLow (%.1f) must be below moistureThresholdHigh (%.1f)", low, high)
	}
	return nil
}

// SetThresholds replaces both pump automation thresholds. Rejecting writes
// leave the stored values untouched (both-or-neither).
func (s *DeviceStore) SetThresholds(ctx context.Context, deviceID string, low, high float64) (*models.Device, error) {
	if err := validateThresholds(low, high); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET moisture_threshold_low = ?, moisture_threshold_high = ? WHERE device_id = ?`,
		low, high, deviceID)
	if err != nil {
		return nil, fmt.Errorf("set device thresholds: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetDevice(ctx, deviceID)
}

// UpdateSettings applies a partial settings edit. Omitted fields keep their
// stored values; the merged threshold pair is validated as a whole.
func (s *DeviceStore) UpdateSettings(ctx context.Context, deviceID string, low, high *float64, notificationsEnabled *bool) (*models.Device, error) {
	device, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	merged := device.Settings
	if low != nil {
		merged.MoistureThresholdLow = *low
	}
	if high != nil {
		merged.MoistureThresholdHigh = *high
	}
	if notificationsEnabled != nil {
		merged.NotificationsEnabled = *notificationsEnabled
	}
	if err := validateThresholds(merged.MoistureThresholdLow, merged.MoistureThresholdHigh); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE devices SET moisture_threshold_low = ?, moisture_threshold_high = ?,
			notifications_enabled = ? WHERE device_id = ?`,
		merged.MoistureThresholdLow, merged.MoistureThresholdHigh,
		merged.NotificationsEnabled, deviceID)
	if err != nil {
		return nil, fmt.Errorf("update device settings: %w", err)
	}
	return s.GetDevice(ctx, deviceID)
}

// CreateOrUpdate is the administrative create/edit path. Settings, when
// provided, replace the stored settings wholesale.
func (s *DeviceStore) CreateOrUpdate(ctx context.Context, deviceID, name string, location *string, settings *models.DeviceSettings) (*models.Device, error) {
	if settings != nil {
		if err := validateThresholds(settings.MoistureThresholdLow, settings.MoistureThresholdHigh); err != nil {
			return nil, err
		}
	}

	device, err := s.GetDevice(ctx, deviceID)
	switch {
	case errors.Is(err, ErrNotFound):
		now := time.Now().UTC()
		newSettings := models.DefaultSettings()
		if settings != nil {
			newSettings = *settings
		}
		loc := ""
		if location != nil {
			loc = *location
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO devices (device_id, name, location, auto_mode, is_online, last_seen,
				moisture_threshold_low, moisture_threshold_high, notifications_enabled, created_at)
			VALUES (?, ?, ?, 1, 0, NULL, ?, ?, ?, ?)`,
			deviceID, name, loc,
			newSettings.MoistureThresholdLow, newSettings.MoistureThresholdHigh,
			newSettings.NotificationsEnabled, now.Unix())
		if err != nil {
			return nil, fmt.Errorf("create device: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		merged := device.Settings
		if settings != nil {
			merged = *settings
		}
		loc := device.Location
		if location != nil {
			loc = *location
		}
		_, err = s.db.ExecContext(ctx, `
			UPDATE devices SET name = ?, location = ?, moisture_threshold_low = ?,
				moisture_threshold_high = ?, notifications_enabled = ? WHERE device_id = ?`,
			name, loc, merged.MoistureThresholdLow, merged.MoistureThresholdHigh,
			merged.NotificationsEnabled, deviceID)
		if err != nil {
			return nil, fmt.Errorf("update device: %w", err)
		}
	}
	return s.GetDevice(ctx, deviceID)
}

func (s *DeviceStore) Delete(ctx context.Context, deviceID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkStaleOffline flips devices whose lastSeen predates cutoff to offline
// and returns the affected ids so callers can broadcast status events.
func (s *DeviceStore) MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE devices SET is_online = 0
		WHERE is_online = 1 AND (last_seen IS NULL OR last_seen < ?)
		RETURNING device_id`, cutoff.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("mark stale devices offline: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan device id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
