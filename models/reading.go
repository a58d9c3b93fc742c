package models

import "time"

// Reading is one accepted sensor observation. Once persisted it is never
// mutated. DeviceID references a device that may not exist in the registry
// yet at persist time.
type Reading struct {
	DeviceID     string    `json:"deviceId"`
	SoilMoisture float64   `json:"soilMoisture"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	PumpStatus   bool      `json:"pumpStatus"`
	Timestamp    time.Time `json:"timestamp"`
	DHTError     bool      `json:"dhtError"`
}

// AlertKindAbnormalReadings marks alerts raised by the safety-range check,
// as opposed to alerts the device firmware reports itself.
const AlertKindAbnormalReadings = "abnormal_readings"

// Alert is an ephemeral notification payload. It is handed to the
// notification gateway fire-and-forget and never persisted.
type Alert struct {
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	Violations []string  `json:"violations,omitempty"`
	Reading    Reading   `json:"reading"`
	Timestamp  time.Time `json:"timestamp"`
}
