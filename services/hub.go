package services

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"sprig/models"
)

// PumpController routes controlPump intents coming in from dashboard
// clients. Implemented by Dispatcher; wired after construction because the
// dispatcher also broadcasts through the hub.
type PumpController interface {
	Dispatch(ctx context.Context, deviceID string, pumpOn bool, autoMode *bool) (PumpState, error)
}

// Hub maintains the set of connected dashboard clients and broadcasts
// events to all of them. The client set is mutated only through the
// register/unregister channels, so broadcast iteration never races a
// disconnect.
type Hub struct {
	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient

	mu      sync.RWMutex
	control PumpController

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		logger:     logger,
	}
}

// SetPumpController wires the command dispatcher once it exists.
func (h *Hub) SetPumpController(control PumpController) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.control = control
}

func (h *Hub) pumpController() PumpController {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.control
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.logger.Info("Realtime hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("Dashboard client connected",
				zap.String("client_id", client.id),
				zap.Int("client_count", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("Dashboard client disconnected",
					zap.String("client_id", client.id),
					zap.Int("client_count", len(h.clients)))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow or gone client: drop it rather than stall the
					// fanout.
					h.logger.Warn("Dropping stalled dashboard client",
						zap.String("client_id", client.id))
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastEvent fans an event out to every connected client as
// {"event": ..., "data": ...}.
func (h *Hub) BroadcastEvent(event string, data any) {
	message, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast event",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("Broadcast queue full, dropping event",
			zap.String("event", event))
	}
}

// handleControl routes an inbound controlPump intent to the dispatcher.
// Runs detached so a slow outbound transport never blocks the client's
// read pump.
func (h *Hub) handleControl(intent models.ControlPumpIntent) {
	control := h.pumpController()
	if control == nil {
		h.logger.Warn("controlPump received before dispatcher wired",
			zap.String("device_id", intent.DeviceID))
		return
	}

	go func() {
		if _, err := control.Dispatch(context.Background(), intent.DeviceID, intent.PumpStatus, intent.AutoMode); err != nil {
			h.logger.Error("controlPump intent failed",
				zap.String("device_id", intent.DeviceID),
				zap.Error(err))
		}
	}()
}
