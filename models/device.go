package models

import "time"

// Default pump automation thresholds applied to auto-provisioned devices.
const (
	DefaultMoistureThresholdLow  = 30.0
	DefaultMoistureThresholdHigh = 55.0
)

// DeviceSettings holds the per-device configuration owned by the registry.
// MoistureThresholdLow/High govern pump automation and are independent of
// the fixed safety ranges used for alerting.
type DeviceSettings struct {
	MoistureThresholdLow  float64 `json:"moistureThresholdLow"`
	MoistureThresholdHigh float64 `json:"moistureThresholdHigh"`
	NotificationsEnabled  bool    `json:"notificationsEnabled"`
}

// DefaultSettings returns the settings assigned to a device on first sighting.
func DefaultSettings() DeviceSettings {
	return DeviceSettings{
		MoistureThresholdLow:  DefaultMoistureThresholdLow,
		MoistureThresholdHigh: DefaultMoistureThresholdHigh,
		NotificationsEnabled:  true,
	}
}

// Device is one physical sensor/actuator unit. DeviceID is the stable
// external identifier and is unique across the registry.
type Device struct {
	DeviceID  string         `json:"deviceId"`
	Name      string         `json:"name"`
	Location  string         `json:"location,omitempty"`
	AutoMode  bool           `json:"autoMode"`
	IsOnline  bool           `json:"isOnline"`
	LastSeen  *time.Time     `json:"lastSeen"`
	Settings  DeviceSettings `json:"settings"`
	CreatedAt time.Time      `json:"createdAt"`
}

// DeviceNameFor derives a display name for an auto-provisioned device from
// the trailing characters of its id.
func DeviceNameFor(deviceID string) string {
	tail := deviceID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return "Device " + tail
}
