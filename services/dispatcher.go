package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sprig/models"
	"sprig/storage"
)

// ErrDeviceNotFound rejects control intents for unregistered devices;
// control intents never provision.
var ErrDeviceNotFound = errors.New("device not found")

// ErrTransportUnavailable reports that the outbound device-command channel
// could not accept the command. The mode change, if any, stays committed.
var ErrTransportUnavailable = errors.New("command transport unavailable")

// CommandPublisher emits pump commands on the outbound device channel.
type CommandPublisher interface {
	PublishPumpCommand(ctx context.Context, cmd models.PumpCommand) error
}

// PumpState is the resolved state returned to the caller of Dispatch.
type PumpState struct {
	DeviceID   string `json:"deviceId"`
	PumpStatus bool   `json:"pumpStatus"`
	AutoMode   bool   `json:"autoMode"`
}

// Dispatcher turns a pump-control intent into a durable mode change and a
// best-effort device command.
type Dispatcher struct {
	registry       DeviceRegistry
	commands       CommandPublisher
	hub            Broadcaster
	logger         *zap.Logger
	publishTimeout time.Duration
}

func NewDispatcher(registry DeviceRegistry, commands CommandPublisher, hub Broadcaster, publishTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry:       registry,
		commands:       commands,
		hub:            hub,
		logger:         logger,
		publishTimeout: publishTimeout,
	}
}

// Dispatch looks up the device, persists autoMode when given, emits exactly
// one pump command and broadcasts the requested state. The broadcast goes
// out regardless of transport success so the dashboard is never stale;
// the actual pump state reconciles via the device's next reading. Mode is
// the durable fact and is deliberately not rolled back on transport failure.
func (d *Dispatcher) Dispatch(ctx context.Context, deviceID string, pumpOn bool, autoMode *bool) (PumpState, error) {
	device, err := d.registry.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return PumpState{}, ErrDeviceNotFound
		}
		return PumpState{}, fmt.Errorf("look up device: %w", err)
	}

	resolvedAuto := device.AutoMode
	if autoMode != nil {
		if _, err := d.registry.SetMode(ctx, deviceID, *autoMode); err != nil {
			return PumpState{}, fmt.Errorf("persist device mode: %w", err)
		}
		resolvedAuto = *autoMode
	}

	state := PumpState{
		DeviceID:   deviceID,
		PumpStatus: pumpOn,
		AutoMode:   resolvedAuto,
	}

	pctx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()
	publishErr := d.commands.PublishPumpCommand(pctx, models.PumpCommand{
		DeviceID: deviceID,
		Pump:     pumpOn,
		Auto:     resolvedAuto,
	})

	d.hub.BroadcastEvent(models.EventPumpStatus, models.PumpStatusEvent{
		DeviceID:   deviceID,
		PumpStatus: pumpOn,
		AutoMode:   resolvedAuto,
	})

	if publishErr != nil {
		d.logger.Error("Failed to publish pump command",
			zap.String("device_id", deviceID),
			zap.Bool("pump", pumpOn),
			zap.Error(publishErr))
		return state, fmt.Errorf("%w: %s", ErrTransportUnavailable, publishErr)
	}

	d.logger.Info("Pump command dispatched",
		zap.String("device_id", deviceID),
		zap.Bool("pump", pumpOn),
		zap.Bool("auto_mode", resolvedAuto))
	return state, nil
}
