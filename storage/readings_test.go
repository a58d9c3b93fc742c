package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprig/models"
)

func insertReadingAt(t *testing.T, store *ReadingStore, deviceID string, moisture float64, ts time.Time) {
	t.Helper()
	err := store.InsertReading(context.Background(), &models.Reading{
		DeviceID:     deviceID,
		SoilMoisture: moisture,
		Temperature:  24,
		Humidity:     55,
		Timestamp:    ts,
	})
	require.NoError(t, err)
}

func TestInsertReading_roundTrip(t *testing.T) {
	store := NewReadingStore(newTestDB(t))
	ctx := context.Background()

	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	err := store.InsertReading(ctx, &models.Reading{
		DeviceID:     "A1",
		SoilMoisture: 42.5,
		Temperature:  -3.5,
		Humidity:     60,
		PumpStatus:   true,
		DHTError:     true,
		Timestamp:    ts,
	})
	require.NoError(t, err)

	readings, err := store.ListReadings(ctx, ReadingQuery{DeviceID: "A1"})
	require.NoError(t, err)
	require.Len(t, readings, 1)

	assert.Equal(t, "A1", readings[0].DeviceID)
	assert.Equal(t, 42.5, readings[0].SoilMoisture)
	assert.Equal(t, -3.5, readings[0].Temperature)
	assert.True(t, readings[0].PumpStatus)
	assert.True(t, readings[0].DHTError)
	assert.Equal(t, ts, readings[0].Timestamp)
}

func TestInsertReading_rejectsOutOfRange(t *testing.T) {
	store := NewReadingStore(newTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		reading models.Reading
	}{
		{
			name:    "moisture above range",
			reading: models.Reading{DeviceID: "A1", SoilMoisture: 150, Humidity: 50},
		},
		{
			name:    "moisture below range",
			reading: models.Reading{DeviceID: "A1", SoilMoisture: -1, Humidity: 50},
		},
		{
			name:    "humidity above range",
			reading: models.Reading{DeviceID: "A1", SoilMoisture: 50, Humidity: 101},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.reading.Timestamp = time.Now().UTC()
			err := store.InsertReading(ctx, &tt.reading)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}

	readings, err := store.ListReadings(ctx, ReadingQuery{})
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestListReadings_filtersAndOrder(t *testing.T) {
	store := NewReadingStore(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertReadingAt(t, store, "A1", float64(40+i), base.Add(time.Duration(i)*time.Minute))
	}
	insertReadingAt(t, store, "B2", 70, base.Add(10*time.Minute))

	// Newest first, scoped to one device
	readings, err := store.ListReadings(ctx, ReadingQuery{DeviceID: "A1"})
	require.NoError(t, err)
	require.Len(t, readings, 5)
	assert.Equal(t, 44.0, readings[0].SoilMoisture)
	assert.Equal(t, 40.0, readings[4].SoilMoisture)

	// Limit caps the result set
	readings, err = store.ListReadings(ctx, ReadingQuery{DeviceID: "A1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 44.0, readings[0].SoilMoisture)

	// Time window is inclusive on both ends
	from := base.Add(1 * time.Minute)
	to := base.Add(3 * time.Minute)
	readings, err = store.ListReadings(ctx, ReadingQuery{DeviceID: "A1", From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, 43.0, readings[0].SoilMoisture)
	assert.Equal(t, 41.0, readings[2].SoilMoisture)

	// Unscoped query spans devices
	readings, err = store.ListReadings(ctx, ReadingQuery{})
	require.NoError(t, err)
	assert.Len(t, readings, 6)
}

func TestLatestPerDevice(t *testing.T) {
	store := NewReadingStore(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	insertReadingAt(t, store, "A1", 40, base)
	insertReadingAt(t, store, "A1", 45, base.Add(5*time.Minute))
	insertReadingAt(t, store, "B2", 70, base.Add(1*time.Minute))

	readings, err := store.LatestPerDevice(ctx)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	assert.Equal(t, "A1", readings[0].DeviceID)
	assert.Equal(t, 45.0, readings[0].SoilMoisture)
	assert.Equal(t, base.Add(5*time.Minute), readings[0].Timestamp)

	assert.Equal(t, "B2", readings[1].DeviceID)
	assert.Equal(t, 70.0, readings[1].SoilMoisture)
}
