package services

import (
	"fmt"
	"strings"

	"sprig/models"
)

// Fixed safety ranges for alerting. These are deliberately independent of
// the per-device pump automation thresholds.
const (
	minSafeMoisture    = 20.0
	minSafeTemperature = 10.0
	maxSafeTemperature = 40.0
	minSafeHumidity    = 20.0
	maxSafeHumidity    = 90.0
)

// EvaluateReading checks a reading against the fixed safety ranges and
// returns at most one alert summarizing every violated bound. When the DHT
// sensor malfunctioned only soil moisture is checked. Pure function; the
// pipeline decides whether the alert actually gets delivered.
func EvaluateReading(r models.Reading) *models.Alert {
	var violations []string

	if r.SoilMoisture < minSafeMoisture {
		violations = append(violations,
			fmt.Sprintf("Soil moisture critically low: %.1f%%", r.SoilMoisture))
	}

	if !r.DHTError {
		if r.Temperature < minSafeTemperature || r.Temperature > maxSafeTemperature {
			violations = append(violations,
				fmt.Sprintf("Temperature outside normal range: %.1f°C", r.Temperature))
		}
		if r.Humidity < minSafeHumidity || r.Humidity > maxSafeHumidity {
			violations = append(violations,
				fmt.Sprintf("Humidity outside normal range: %.1f%%", r.Humidity))
		}
	}

	if len(violations) == 0 {
		return nil
	}

	return &models.Alert{
		DeviceID:   r.DeviceID,
		Kind:       models.AlertKindAbnormalReadings,
		Message:    strings.Join(violations, "; "),
		Violations: violations,
		Reading:    r,
		Timestamp:  r.Timestamp,
	}
}
