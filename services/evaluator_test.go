package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprig/models"
)

func TestEvaluateReading(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		reading        models.Reading
		wantViolations int
	}{
		{
			name: "healthy reading",
			reading: models.Reading{
				DeviceID: "A1", SoilMoisture: 45, Temperature: 24, Humidity: 55, Timestamp: ts,
			},
			wantViolations: 0,
		},
		{
			name: "low moisture",
			reading: models.Reading{
				DeviceID: "A1", SoilMoisture: 15, Temperature: 24, Humidity: 55, Timestamp: ts,
			},
			wantViolations: 1,
		},
		{
			name: "moisture at the boundary is safe",
			reading: models.Reading{
				DeviceID: "A1", SoilMoisture: 20, Temperature: 24, Humidity: 55, Timestamp: ts,
			},
			wantViolations: 0,
		},
		{
			name: "temperature too high",
			reading: models.Reading{
				DeviceID: "A1", SoilMoisture: 45, Temperature: 41, Humidity: 55, Timestamp: ts,
			},
			wantViolations: 1,
		},
		{
			name: "temperature too low",
			reading: models.Reading{
				DeviceID: "A1", SoilMoisture: 45, Temperature: 9, Humidity: 55, Timestamp: ts,
			},
			wantViolations: 1,
		},
		{
			name: "humidity out of range",
			reading: models.Reading{
				DeviceID: "A1", SoilMoisture: 45, Temperature: 24, Humidity: 95, Timestamp: ts,
			},
			wantViolations: 1,
		},
		{
			name: "every bound violated",
			reading: models.Reading{
				DeviceID: "A1", SoilMoisture: 5, Temperature: 45, Humidity: 10, Timestamp: ts,
			},
			wantViolations: 3,
		},
		{
			name: "dht fault skips temperature and humidity",
			reading: models.Reading{
				DeviceID: "A1", SoilMoisture: 45, Temperature: 0, Humidity: 0,
				DHTError: true, Timestamp: ts,
			},
			wantViolations: 0,
		},
		{
			name: "dht fault still checks moisture",
			reading: models.Reading{
				DeviceID: "A1", SoilMoisture: 10, Temperature: 0, Humidity: 0,
				DHTError: true, Timestamp: ts,
			},
			wantViolations: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := EvaluateReading(tt.reading)
			if tt.wantViolations == 0 {
				assert.Nil(t, alert)
				return
			}

			require.NotNil(t, alert)
			assert.Equal(t, tt.reading.DeviceID, alert.DeviceID)
			assert.Equal(t, models.AlertKindAbnormalReadings, alert.Kind)
			assert.Len(t, alert.Violations, tt.wantViolations)
			assert.Equal(t, tt.reading, alert.Reading)
			assert.Equal(t, ts, alert.Timestamp)
		})
	}
}

func TestEvaluateReading_singleAlertPerReading(t *testing.T) {
	alert := EvaluateReading(models.Reading{
		DeviceID: "A1", SoilMoisture: 5, Temperature: 50, Humidity: 5,
		Timestamp: time.Now().UTC(),
	})

	require.NotNil(t, alert)
	assert.Contains(t, alert.Message, "Soil moisture critically low")
	assert.Contains(t, alert.Message, "Temperature outside normal range")
	assert.Contains(t, alert.Message, "Humidity outside normal range")
	assert.Contains(t, alert.Message, "; ")
}

func TestEvaluateReading_pure(t *testing.T) {
	r := models.Reading{
		DeviceID: "A1", SoilMoisture: 5, Temperature: 24, Humidity: 55,
		Timestamp: time.Now().UTC(),
	}

	first := EvaluateReading(r)
	second := EvaluateReading(r)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first, second)
}
