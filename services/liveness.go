package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sprig/models"
)

// StaleMarker is the registry slice needed by the liveness monitor.
type StaleMarker interface {
	MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]string, error)
}

// LivenessMonitor periodically flips devices that have stopped reporting to
// offline and broadcasts the transition to dashboard clients.
type LivenessMonitor struct {
	registry     StaleMarker
	hub          Broadcaster
	interval     time.Duration
	offlineAfter time.Duration
	logger       *zap.Logger
}

func NewLivenessMonitor(registry StaleMarker, hub Broadcaster, interval, offlineAfter time.Duration, logger *zap.Logger) *LivenessMonitor {
	return &LivenessMonitor{
		registry:     registry,
		hub:          hub,
		interval:     interval,
		offlineAfter: offlineAfter,
		logger:       logger,
	}
}

// Start runs the sweep until ctx is cancelled.
func (m *LivenessMonitor) Start(ctx context.Context) {
	m.logger.Info("Starting device liveness monitor",
		zap.Duration("interval", m.interval),
		zap.Duration("offline_after", m.offlineAfter))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Device liveness monitor stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *LivenessMonitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-m.offlineAfter)
	ids, err := m.registry.MarkStaleOffline(ctx, cutoff)
	if err != nil {
		m.logger.Error("Liveness sweep failed", zap.Error(err))
		return
	}

	for _, id := range ids {
		m.logger.Info("Device went offline", zap.String("device_id", id))
		m.hub.BroadcastEvent(models.EventDeviceStatus, models.DeviceStatusEvent{
			DeviceID: id,
			IsOnline: false,
		})
	}
}
