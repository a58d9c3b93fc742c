package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sprig/models"
	"sprig/services"
	"sprig/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard origins are enforced by the auth collaborator in front of
	// this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DeviceRegistry is the handler's view of the device registry.
type DeviceRegistry interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	CreateOrUpdate(ctx context.Context, deviceID, name string, location *string, settings *models.DeviceSettings) (*models.Device, error)
	UpdateSettings(ctx context.Context, deviceID string, low, high *float64, notificationsEnabled *bool) (*models.Device, error)
	SetThresholds(ctx context.Context, deviceID string, low, high float64) (*models.Device, error)
	SetMode(ctx context.Context, deviceID string, autoMode bool) (*models.Device, error)
	Delete(ctx context.Context, deviceID string) error
}

// ReadingQuerier serves the thin dashboard read endpoints.
type ReadingQuerier interface {
	ListReadings(ctx context.Context, q storage.ReadingQuery) ([]models.Reading, error)
	LatestPerDevice(ctx context.Context) ([]models.Reading, error)
}

// PumpDispatcher routes pump-control intents.
type PumpDispatcher interface {
	Dispatch(ctx context.Context, deviceID string, pumpOn bool, autoMode *bool) (services.PumpState, error)
}

type Handler struct {
	registry   DeviceRegistry
	readings   ReadingQuerier
	dispatcher PumpDispatcher
	hub        *services.Hub
	logger     *zap.Logger
}

func NewHandler(registry DeviceRegistry, readings ReadingQuerier, dispatcher PumpDispatcher, hub *services.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		registry:   registry,
		readings:   readings,
		dispatcher: dispatcher,
		hub:        hub,
		logger:     logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps registry/store errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var verr *storage.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Device not found")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.registry.ListDevices(r.Context())
	if err != nil {
		h.logger.Error("Failed to list devices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch devices")
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (h *Handler) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	device, err := h.registry.GetDevice(r.Context(), deviceID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

type createDeviceRequest struct {
	DeviceID string  `json:"deviceId"`
	Name     string  `json:"name"`
	Location *string `json:"location"`
	Settings *struct {
		MoistureThresholdLow  *float64 `json:"moistureThresholdLow"`
		MoistureThresholdHigh *float64 `json:"moistureThresholdHigh"`
		NotificationsEnabled  *bool    `json:"notificationsEnabled"`
	} `json:"settings"`
}

func (h *Handler) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DeviceID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Device ID and name are required")
		return
	}

	var settings *models.DeviceSettings
	if req.Settings != nil {
		// Partial settings merge against the stored (or default) values.
		base := models.DefaultSettings()
		if existing, err := h.registry.GetDevice(r.Context(), req.DeviceID); err == nil {
			base = existing.Settings
		}
		if req.Settings.MoistureThresholdLow != nil {
			base.MoistureThresholdLow = *req.Settings.MoistureThresholdLow
		}
		if req.Settings.MoistureThresholdHigh != nil {
			base.MoistureThresholdHigh = *req.Settings.MoistureThresholdHigh
		}
		if req.Settings.NotificationsEnabled != nil {
			base.NotificationsEnabled = *req.Settings.NotificationsEnabled
		}
		settings = &base
	}

	device, err := h.registry.CreateOrUpdate(r.Context(), req.DeviceID, req.Name, req.Location, settings)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var req struct {
		MoistureThresholdLow  *float64 `json:"moistureThresholdLow"`
		MoistureThresholdHigh *float64 `json:"moistureThresholdHigh"`
		NotificationsEnabled  *bool    `json:"notificationsEnabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	device, err := h.registry.UpdateSettings(r.Context(), deviceID,
		req.MoistureThresholdLow, req.MoistureThresholdHigh, req.NotificationsEnabled)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (h *Handler) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var req struct {
		MoistureThresholdLow  *float64 `json:"moistureThresholdLow"`
		MoistureThresholdHigh *float64 `json:"moistureThresholdHigh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MoistureThresholdLow == nil || req.MoistureThresholdHigh == nil {
		writeError(w, http.StatusBadRequest, "moistureThresholdLow and moistureThresholdHigh are required")
		return
	}

	device, err := h.registry.SetThresholds(r.Context(), deviceID,
		*req.MoistureThresholdLow, *req.MoistureThresholdHigh)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (h *Handler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var req struct {
		AutoMode *bool `json:"autoMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AutoMode == nil {
		writeError(w, http.StatusBadRequest, "autoMode parameter is required")
		return
	}

	device, err := h.registry.SetMode(r.Context(), deviceID, *req.AutoMode)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (h *Handler) handleControlPump(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var req struct {
		Status   *bool `json:"status"`
		AutoMode *bool `json:"autoMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status == nil {
		writeError(w, http.StatusBadRequest, "pump status parameter is required")
		return
	}

	state, err := h.dispatcher.Dispatch(r.Context(), deviceID, *req.Status, req.AutoMode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDeviceNotFound):
			writeError(w, http.StatusNotFound, "Device not found")
		case errors.Is(err, services.ErrTransportUnavailable):
			writeError(w, http.StatusInternalServerError, "Failed to control pump")
		default:
			h.logger.Error("Pump dispatch failed",
				zap.String("device_id", deviceID),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to control pump")
		}
		return
	}

	message := "Pump turned OFF"
	if state.PumpStatus {
		message = "Pump turned ON"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deviceId":   state.DeviceID,
		"pumpStatus": state.PumpStatus,
		"autoMode":   state.AutoMode,
		"message":    message,
	})
}

func (h *Handler) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	if err := h.registry.Delete(r.Context(), deviceID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Device deleted successfully"})
}

func (h *Handler) handleSensorData(w http.ResponseWriter, r *http.Request) {
	q := storage.ReadingQuery{
		DeviceID: r.URL.Query().Get("deviceId"),
		Limit:    parseIntParam(r, "limit", 50),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			q.From = &t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			q.To = &t
		}
	}

	data, err := h.readings.ListReadings(r.Context(), q)
	if err != nil {
		h.logger.Error("Failed to fetch sensor data", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch dashboard data")
		return
	}
	if data == nil {
		data = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(data),
		"data":    data,
	})
}

func (h *Handler) handleLatestSensorData(w http.ResponseWriter, r *http.Request) {
	data, err := h.readings.LatestPerDevice(r.Context())
	if err != nil {
		h.logger.Error("Failed to fetch latest readings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch latest readings")
		return
	}
	if data == nil {
		data = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleDeviceSensorData(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	data, err := h.readings.ListReadings(r.Context(), storage.ReadingQuery{
		DeviceID: deviceID,
		Limit:    parseIntParam(r, "limit", 100),
	})
	if err != nil {
		h.logger.Error("Failed to fetch device readings",
			zap.String("device_id", deviceID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch device readings")
		return
	}
	if data == nil {
		data = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.HandleConnection(conn)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
