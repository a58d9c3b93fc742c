package models

import "time"

// Real-time subscriber protocol event names.
const (
	EventSensorData   = "sensorData"
	EventDeviceStatus = "deviceStatus"
	EventPumpStatus   = "pumpStatus"
	EventDeviceAlert  = "deviceAlert"
	EventControlPump  = "controlPump"
)

// DeviceStatusEvent reports a device coming online or going offline.
type DeviceStatusEvent struct {
	DeviceID string `json:"deviceId"`
	IsOnline bool   `json:"isOnline"`
}

// PumpStatusEvent reflects the caller's requested pump state. The
// authoritative state is reconciled by the device's next sensor reading.
type PumpStatusEvent struct {
	DeviceID   string `json:"deviceId"`
	PumpStatus bool   `json:"pumpStatus"`
	AutoMode   bool   `json:"autoMode"`
}

// DeviceAlertEvent is broadcast to dashboard clients when an alert arrives.
type DeviceAlertEvent struct {
	DeviceID  string    `json:"deviceId"`
	AlertType string    `json:"alertType"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ControlPumpIntent is the client→server pump control message. AutoMode is
// optional; when nil the device keeps its current mode.
type ControlPumpIntent struct {
	DeviceID   string `json:"deviceId"`
	PumpStatus bool   `json:"pumpStatus"`
	AutoMode   *bool  `json:"autoMode"`
}

// PumpCommand is the outbound device-channel payload.
type PumpCommand struct {
	DeviceID string `json:"device_id"`
	Pump     bool   `json:"pump"`
	Auto     bool   `json:"auto"`
}
