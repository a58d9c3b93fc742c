package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sprig/models"
)

// ReadingStore is the append-only store of sensor observations.
type ReadingStore struct {
	db *sql.DB
}

func NewReadingStore(db *sql.DB) *ReadingStore {
	return &ReadingStore{db: db}
}

// InsertReading persists a reading. Out-of-range moisture or humidity is
// rejected with a ValidationError rather than silently coerced; the
// normalizer's floor-at-zero rule for moisture is the only coercion in the
// ingest path.
func (s *ReadingStore) InsertReading(ctx context.Context, r *models.Reading) error {
	if r.SoilMoisture < 0 || r.SoilMoisture > 100 {
		return validationErrorf("soil moisture %.1f outside 0-100", r.SoilMoisture)
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		return validationErrorf("humidity %.1f outside 0-100", r.Humidity)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (device_id, soil_moisture, temperature, humidity, pump_status, dht_error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.DeviceID, r.SoilMoisture, r.Temperature, r.Humidity,
		r.PumpStatus, r.DHTError, r.Timestamp.UTC().Unix())
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// ReadingQuery filters ListReadings. A zero Limit falls back to 50.
type ReadingQuery struct {
	DeviceID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

func (s *ReadingStore) ListReadings(ctx context.Context, q ReadingQuery) ([]models.Reading, error) {
	query := `SELECT device_id, soil_moisture, temperature, humidity, pump_status, dht_error, timestamp
		FROM readings WHERE 1=1`
	var args []any
	if q.DeviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, q.DeviceID)
	}
	if q.From != nil {
		query += ` AND timestamp >= ?`
		args = append(args, q.From.UTC().Unix())
	}
	if q.To != nil {
		query += ` AND timestamp <= ?`
		args = append(args, q.To.UTC().Unix())
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanReadings(rows)
}

// LatestPerDevice returns the most recent reading for every device that has
// reported at least once.
func (s *ReadingStore) LatestPerDevice(ctx context.Context) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, soil_moisture, temperature, humidity, pump_status, dht_error, MAX(timestamp) AS timestamp
		FROM readings GROUP BY device_id ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("latest readings per device: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanReadings(rows)
}

func scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	var readings []models.Reading
	for rows.Next() {
		var (
			r  models.Reading
			ts int64
		)
		err := rows.Scan(&r.DeviceID, &r.SoilMoisture, &r.Temperature, &r.Humidity,
			&r.PumpStatus, &r.DHTError, &ts)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Timestamp = time.Unix(ts, 0).UTC()
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
