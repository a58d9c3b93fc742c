package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"sprig/models"
	"sprig/storage"
)

// TopicKind identifies which inbound device topic a message arrived on.
type TopicKind string

const (
	// TopicKindSensorData is the primary sensor firmware format.
	TopicKindSensorData TopicKind = "sensor_data"
	// TopicKindSensorsData is the alternate firmware format; field aliases
	// are resolved by the normalizer, so it shares the full pipeline path.
	TopicKindSensorsData TopicKind = "sensors_data"
	// TopicKindStatus carries connect announcements and takes the reduced
	// path: registry + fanout only.
	TopicKindStatus TopicKind = "status"
	// TopicKindAlerts carries firmware-reported alerts and bypasses the
	// reading store.
	TopicKindAlerts TopicKind = "alerts"
)

const notifyTimeout = 30 * time.Second

// DeviceRegistry is the pipeline's view of the durable device registry.
type DeviceRegistry interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	UpsertOnSighting(ctx context.Context, deviceID string) (*models.Device, error)
	MarkSeen(ctx context.Context, deviceID string) (*models.Device, error)
	SetMode(ctx context.Context, deviceID string, autoMode bool) (*models.Device, error)
}

// ReadingWriter persists canonical readings.
type ReadingWriter interface {
	InsertReading(ctx context.Context, r *models.Reading) error
}

// Broadcaster distributes events to all connected dashboard clients.
type Broadcaster interface {
	BroadcastEvent(event string, data any)
}

// Notifier delivers an alert out-of-band. Failures are contained by the
// pipeline and never block ingestion.
type Notifier interface {
	Send(ctx context.Context, alert *models.Alert) error
}

// Pipeline orchestrates inbound device messages: normalize, persist, sync
// the registry, evaluate alerts, fan out. Each message is processed fully
// and sequentially; messages for different devices may run concurrently.
type Pipeline struct {
	registry DeviceRegistry
	readings ReadingWriter
	hub      Broadcaster
	notifier Notifier
	logger   *zap.Logger
}

func NewPipeline(registry DeviceRegistry, readings ReadingWriter, hub Broadcaster, notifier Notifier, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		registry: registry,
		readings: readings,
		hub:      hub,
		notifier: notifier,
		logger:   logger,
	}
}

// Ingest is the single ingress for all inbound device messages, keyed by
// topic kind. Malformed payloads are dropped and logged; the messaging
// transport owns redelivery semantics.
func (p *Pipeline) Ingest(ctx context.Context, kind TopicKind, payload []byte) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		p.logger.Warn("Dropping malformed device message",
			zap.String("topic_kind", string(kind)),
			zap.Error(err))
		return
	}

	switch kind {
	case TopicKindSensorData, TopicKindSensorsData:
		p.handleSensorData(ctx, raw)
	case TopicKindStatus:
		p.handleStatus(ctx, raw)
	case TopicKindAlerts:
		p.handleDeviceAlert(ctx, raw)
	default:
		p.logger.Warn("Dropping message for unknown topic kind",
			zap.String("topic_kind", string(kind)))
	}
}

func (p *Pipeline) handleSensorData(ctx context.Context, raw map[string]any) {
	reading := NormalizeReading(raw)

	if err := p.readings.InsertReading(ctx, &reading); err != nil {
		p.logger.Warn("Rejected sensor reading",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err))
		return
	}

	device, err := p.registry.UpsertOnSighting(ctx, reading.DeviceID)
	if err != nil {
		// The reading is already durable; the sighting update will catch up
		// on the next message.
		p.logger.Error("Failed to sync device registry",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err))
	} else if alert := EvaluateReading(reading); alert != nil && device.Settings.NotificationsEnabled {
		alert.DeviceName = device.Name
		p.dispatchAlert(alert)
	}

	p.hub.BroadcastEvent(models.EventSensorData, reading)

	p.logger.Debug("Processed sensor reading",
		zap.String("device_id", reading.DeviceID),
		zap.Float64("soil_moisture", reading.SoilMoisture),
		zap.Float64("temperature", reading.Temperature),
		zap.Float64("humidity", reading.Humidity),
		zap.Bool("pump_status", reading.PumpStatus),
		zap.Bool("dht_error", reading.DHTError))
}

func (p *Pipeline) handleStatus(ctx context.Context, raw map[string]any) {
	status := NormalizeStatus(raw)
	if status.Status != "connected" {
		return
	}

	if _, err := p.registry.MarkSeen(ctx, status.DeviceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Status messages never provision; only sensor sightings do.
			p.logger.Debug("Status from unregistered device",
				zap.String("device_id", status.DeviceID))
		} else {
			p.logger.Error("Failed to mark device seen",
				zap.String("device_id", status.DeviceID),
				zap.Error(err))
		}
	}

	p.hub.BroadcastEvent(models.EventDeviceStatus, models.DeviceStatusEvent{
		DeviceID: status.DeviceID,
		IsOnline: true,
	})
}

func (p *Pipeline) handleDeviceAlert(ctx context.Context, raw map[string]any) {
	msg := NormalizeDeviceAlert(raw)

	device, err := p.registry.GetDevice(ctx, msg.DeviceID)
	if err == nil && device.Settings.NotificationsEnabled {
		p.dispatchAlert(&models.Alert{
			DeviceID:   msg.DeviceID,
			DeviceName: device.Name,
			Kind:       msg.Type,
			Message:    msg.Message,
			Reading:    msg.Reading,
			Timestamp:  msg.Timestamp,
		})
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		p.logger.Error("Failed to look up device for alert",
			zap.String("device_id", msg.DeviceID),
			zap.Error(err))
	}

	p.hub.BroadcastEvent(models.EventDeviceAlert, models.DeviceAlertEvent{
		DeviceID:  msg.DeviceID,
		AlertType: msg.Type,
		Message:   msg.Message,
		Timestamp: msg.Timestamp,
	})
}

// dispatchAlert hands the alert to the notification gateway as a detached
// task. Gateway failures and panics stop here.
func (p *Pipeline) dispatchAlert(alert *models.Alert) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Notifier panicked",
					zap.String("device_id", alert.DeviceID),
					zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := p.notifier.Send(ctx, alert); err != nil {
			p.logger.Error("Failed to deliver alert notification",
				zap.String("device_id", alert.DeviceID),
				zap.String("kind", alert.Kind),
				zap.Error(err))
			return
		}
		p.logger.Info("Alert notification sent",
			zap.String("device_id", alert.DeviceID),
			zap.String("kind", alert.Kind))
	}()
}
