package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprig/models"
	"sprig/storage/migrations"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	require.NoError(t, Migrate(db, migrations.FS))
	return db
}

func TestUpsertOnSighting_provisionsWithDefaults(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	device, err := store.UpsertOnSighting(ctx, "ESP32-IRRIG-001")
	require.NoError(t, err)

	assert.Equal(t, "ESP32-IRRIG-001", device.DeviceID)
	assert.Equal(t, "Device IG-001", device.Name)
	assert.True(t, device.AutoMode)
	assert.True(t, device.IsOnline)
	require.NotNil(t, device.LastSeen)
	assert.Equal(t, models.DefaultMoistureThresholdLow, device.Settings.MoistureThresholdLow)
	assert.Equal(t, models.DefaultMoistureThresholdHigh, device.Settings.MoistureThresholdHigh)
	assert.True(t, device.Settings.NotificationsEnabled)
}

func TestUpsertOnSighting_repeatKeepsIdentity(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpsertOnSighting(ctx, "A1")
	require.NoError(t, err)

	// Operator renames the device and tunes its thresholds
	location := "Greenhouse 2"
	_, err = store.CreateOrUpdate(ctx, "A1", "North bed", &location, &models.DeviceSettings{
		MoistureThresholdLow:  25,
		MoistureThresholdHigh: 60,
		NotificationsEnabled:  true,
	})
	require.NoError(t, err)

	// A later sighting bumps liveness but never reverts the edits
	device, err := store.UpsertOnSighting(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "North bed", device.Name)
	assert.Equal(t, "Greenhouse 2", device.Location)
	assert.Equal(t, 25.0, device.Settings.MoistureThresholdLow)
	assert.Equal(t, 60.0, device.Settings.MoistureThresholdHigh)
	assert.True(t, device.IsOnline)

	devices, err := store.ListDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestGetDevice_notFound(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))

	_, err := store.GetDevice(context.Background(), "GHOST")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkSeen(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.MarkSeen(ctx, "GHOST")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.UpsertOnSighting(ctx, "A1")
	require.NoError(t, err)

	device, err := store.MarkSeen(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, device.IsOnline)
	require.NotNil(t, device.LastSeen)
}

func TestSetMode(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpsertOnSighting(ctx, "A1")
	require.NoError(t, err)

	device, err := store.SetMode(ctx, "A1", false)
	require.NoError(t, err)
	assert.False(t, device.AutoMode)

	device, err = store.SetMode(ctx, "A1", true)
	require.NoError(t, err)
	assert.True(t, device.AutoMode)

	_, err = store.SetMode(ctx, "GHOST", true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetThresholds(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpsertOnSighting(ctx, "A1")
	require.NoError(t, err)

	device, err := store.SetThresholds(ctx, "A1", 25, 70)
	require.NoError(t, err)
	assert.Equal(t, 25.0, device.Settings.MoistureThresholdLow)
	assert.Equal(t, 70.0, device.Settings.MoistureThresholdHigh)

	_, err = store.SetThresholds(ctx, "GHOST", 25, 70)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetThresholds_invalidPairLeavesStoredValues(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpsertOnSighting(ctx, "A1")
	require.NoError(t, err)

	tests := []struct {
		name      string
		low, high float64
	}{
		{name: "inverted pair", low: 60, high: 40},
		{name: "equal pair", low: 50, high: 50},
		{name: "low below range", low: -5, high: 50},
		{name: "high above range", low: 30, high: 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.SetThresholds(ctx, "A1", tt.low, tt.high)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			device, err := store.GetDevice(ctx, "A1")
			require.NoError(t, err)
			assert.Equal(t, models.DefaultMoistureThresholdLow, device.Settings.MoistureThresholdLow)
			assert.Equal(t, models.DefaultMoistureThresholdHigh, device.Settings.MoistureThresholdHigh)
		})
	}
}

func TestUpdateSettings_partialMerge(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpsertOnSighting(ctx, "A1")
	require.NoError(t, err)

	low := 20.0
	device, err := store.UpdateSettings(ctx, "A1", &low, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 20.0, device.Settings.MoistureThresholdLow)
	assert.Equal(t, models.DefaultMoistureThresholdHigh, device.Settings.MoistureThresholdHigh)
	assert.True(t, device.Settings.NotificationsEnabled)

	enabled := false
	device, err = store.UpdateSettings(ctx, "A1", nil, nil, &enabled)
	require.NoError(t, err)
	assert.Equal(t, 20.0, device.Settings.MoistureThresholdLow)
	assert.False(t, device.Settings.NotificationsEnabled)
}

func TestUpdateSettings_mergedPairValidated(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpsertOnSighting(ctx, "A1")
	require.NoError(t, err)

	// Stored high is 55, so a lone low of 60 would invert the pair
	low := 60.0
	_, err = store.UpdateSettings(ctx, "A1", &low, nil, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	device, err := store.GetDevice(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMoistureThresholdLow, device.Settings.MoistureThresholdLow)
}

func TestCreateOrUpdate(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	device, err := store.CreateOrUpdate(ctx, "A1", "Greenhouse", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Greenhouse", device.Name)
	assert.False(t, device.IsOnline)
	assert.Nil(t, device.LastSeen)
	assert.Equal(t, models.DefaultMoistureThresholdLow, device.Settings.MoistureThresholdLow)

	settings := models.DeviceSettings{
		MoistureThresholdLow:  10,
		MoistureThresholdHigh: 90,
		NotificationsEnabled:  false,
	}
	device, err = store.CreateOrUpdate(ctx, "A1", "Greenhouse east", nil, &settings)
	require.NoError(t, err)
	assert.Equal(t, "Greenhouse east", device.Name)
	assert.Equal(t, settings, device.Settings)

	_, err = store.CreateOrUpdate(ctx, "A1", "Greenhouse east", nil, &models.DeviceSettings{
		MoistureThresholdLow:  90,
		MoistureThresholdHigh: 10,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDeleteDevice(t *testing.T) {
	store := NewDeviceStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpsertOnSighting(ctx, "A1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "A1"))
	_, err = store.GetDevice(ctx, "A1")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, store.Delete(ctx, "A1"), ErrNotFound)
}

func TestMarkStaleOffline(t *testing.T) {
	db := newTestDB(t)
	store := NewDeviceStore(db)
	ctx := context.Background()

	_, err := store.UpsertOnSighting(ctx, "stale")
	require.NoError(t, err)
	_, err = store.UpsertOnSighting(ctx, "fresh")
	require.NoError(t, err)

	// Age the stale device past the cutoff
	old := time.Now().UTC().Add(-10 * time.Minute).Unix()
	_, err = db.ExecContext(ctx, `UPDATE devices SET last_seen = ? WHERE device_id = ?`, old, "stale")
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-2 * time.Minute)
	ids, err := store.MarkStaleOffline(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, ids)

	device, err := store.GetDevice(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, device.IsOnline)

	device, err = store.GetDevice(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, device.IsOnline)

	// Already-offline devices are not reported again
	ids, err = store.MarkStaleOffline(ctx, cutoff)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
