package services

import (
	"time"

	"sprig/models"
)

// SensorFaultSentinel is the out-of-band value firmware reports when the
// DHT sensor failed to produce a measurement.
const SensorFaultSentinel = -999.0

// Field aliases accumulated across firmware revisions, in resolution
// priority order: the first key present in a payload wins. New formats are
// additive entries here, not new branches in the pipeline.
var (
	deviceIDKeys    = []string{"device_id", "deviceId", "id"}
	moistureKeys    = []string{"soil_moisture", "soilMoisture", "moisture"}
	temperatureKeys = []string{"temperature", "temp"}
	humidityKeys    = []string{"humidity", "humid"}
	pumpKeys        = []string{"pump_status", "pumpStatus", "pump"}
	dhtErrorKeys    = []string{"dht_error", "dhtError"}
	timestampKeys   = []string{"timestamp"}
)

// NormalizeReading turns a raw sensor payload of any known firmware format
// into a canonical Reading. Every field of the result is populated: absent
// fields fall back to documented defaults (0, false, "unknown", now). Pure
// apart from the server-assigned timestamp fallback.
func NormalizeReading(payload map[string]any) models.Reading {
	r := models.Reading{
		DeviceID:     lookupString(payload, deviceIDKeys, "unknown"),
		SoilMoisture: lookupNumber(payload, moistureKeys, 0),
		Temperature:  lookupNumber(payload, temperatureKeys, 0),
		Humidity:     lookupNumber(payload, humidityKeys, 0),
		PumpStatus:   lookupBool(payload, pumpKeys, false),
		Timestamp:    lookupTime(payload, timestampKeys),
	}

	if r.SoilMoisture < 0 {
		r.SoilMoisture = 0
	}
	if r.Temperature == SensorFaultSentinel {
		r.Temperature = 0
		r.DHTError = true
	}
	if r.Humidity == SensorFaultSentinel {
		r.Humidity = 0
		r.DHTError = true
	}
	if lookupBool(payload, dhtErrorKeys, false) {
		r.DHTError = true
	}

	return r
}

// StatusMessage is a normalized device status payload.
type StatusMessage struct {
	DeviceID string
	Status   string
}

func NormalizeStatus(payload map[string]any) StatusMessage {
	return StatusMessage{
		DeviceID: lookupString(payload, deviceIDKeys, "unknown"),
		Status:   lookupString(payload, []string{"status"}, ""),
	}
}

// DeviceAlertMessage is a normalized firmware-reported alert payload.
type DeviceAlertMessage struct {
	DeviceID  string
	Type      string
	Message   string
	Reading   models.Reading
	Timestamp time.Time
}

func NormalizeDeviceAlert(payload map[string]any) DeviceAlertMessage {
	ts := lookupTime(payload, timestampKeys)
	return DeviceAlertMessage{
		DeviceID: lookupString(payload, deviceIDKeys, "unknown"),
		Type:     lookupString(payload, []string{"type"}, "unknown"),
		Message:  lookupString(payload, []string{"message"}, "No details provided"),
		Reading: models.Reading{
			DeviceID:     lookupString(payload, deviceIDKeys, "unknown"),
			SoilMoisture: lookupNumber(payload, moistureKeys, 0),
			Temperature:  lookupNumber(payload, temperatureKeys, 0),
			Humidity:     lookupNumber(payload, humidityKeys, 0),
			Timestamp:    ts,
		},
		Timestamp: ts,
	}
}

func lookupString(payload map[string]any, keys []string, fallback string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}

func lookupNumber(payload map[string]any, keys []string, fallback float64) float64 {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return fallback
}

func lookupBool(payload map[string]any, keys []string, fallback bool) bool {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case bool:
			return v
		case float64:
			return v != 0
		}
	}
	return fallback
}

// lookupTime accepts RFC 3339 strings or Unix-second numbers and falls back
// to the current server time.
func lookupTime(payload map[string]any, keys []string) time.Time {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t.UTC()
			}
		case float64:
			return time.Unix(int64(v), 0).UTC()
		}
	}
	return time.Now().UTC()
}
