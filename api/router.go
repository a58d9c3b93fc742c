package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the REST control surface and the websocket endpoint.
// Authentication sits in front of this service and is not handled here.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealthz)
	r.Get("/ws", h.handleWebSocket)

	r.Route("/api/devices", func(r chi.Router) {
		r.Get("/", h.handleListDevices)
		r.Post("/", h.handleCreateDevice)
		r.Route("/{deviceId}", func(r chi.Router) {
			r.Get("/", h.handleGetDevice)
			r.Delete("/", h.handleDeleteDevice)
			r.Patch("/settings", h.handleUpdateSettings)
			r.Patch("/thresholds", h.handleSetThresholds)
			r.Patch("/mode", h.handleSetMode)
			r.Post("/pump", h.handleControlPump)
		})
	})

	r.Route("/api/sensor-data", func(r chi.Router) {
		r.Get("/data", h.handleSensorData)
		r.Get("/latest", h.handleLatestSensorData)
		r.Get("/device/{deviceId}", h.handleDeviceSensorData)
	})

	return r
}
