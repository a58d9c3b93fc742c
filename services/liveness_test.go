package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sprig/models"
)

type fakeStaleMarker struct {
	ids    []string
	err    error
	cutoff time.Time
}

func (f *fakeStaleMarker) MarkStaleOffline(_ context.Context, cutoff time.Time) ([]string, error) {
	f.cutoff = cutoff
	return f.ids, f.err
}

func TestLivenessSweep_broadcastsOfflineTransitions(t *testing.T) {
	marker := &fakeStaleMarker{ids: []string{"A1", "B2"}}
	hub := &fakeBroadcaster{}
	monitor := NewLivenessMonitor(marker, hub, time.Minute, 2*time.Minute, zap.NewNop())

	monitor.sweep(context.Background())

	// Cutoff sits offlineAfter in the past
	assert.WithinDuration(t, time.Now().Add(-2*time.Minute), marker.cutoff, 2*time.Second)

	events := hub.events()
	require.Len(t, events, 2)
	for i, id := range []string{"A1", "B2"} {
		assert.Equal(t, models.EventDeviceStatus, events[i].event)
		status, ok := events[i].data.(models.DeviceStatusEvent)
		require.True(t, ok)
		assert.Equal(t, id, status.DeviceID)
		assert.False(t, status.IsOnline)
	}
}

func TestLivenessSweep_registryFailure(t *testing.T) {
	marker := &fakeStaleMarker{err: assert.AnError}
	hub := &fakeBroadcaster{}
	monitor := NewLivenessMonitor(marker, hub, time.Minute, 2*time.Minute, zap.NewNop())

	monitor.sweep(context.Background())

	assert.Empty(t, hub.events())
}
