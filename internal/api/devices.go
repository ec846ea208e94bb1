package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classpower/classpower-core/internal/device"
)

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListDevices(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// setSwitchStateRequest is the body for a manual switch toggle.
type setSwitchStateRequest struct {
	State bool `json:"state"`

	// TimeoutMinutes arms an auto-off timer when turning on; zero means no
	// timeout.
	TimeoutMinutes int `json:"timeout_minutes"`
}

// handleSetSwitchState toggles one switch from the dashboard.
//
// The toggle flows through the engine so dispatch, intent queueing on
// delivery failure, broadcast, and activity logging all happen exactly as
// they do for scheduled actions.
func (s *Server) handleSetSwitchState(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	switchID := chi.URLParam(r, "switchID")

	var req setSwitchStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.TimeoutMinutes < 0 {
		writeBadRequest(w, "timeout_minutes must not be negative")
		return
	}

	dev, err := s.engine.ManualToggle(r.Context(), deviceID, switchID, req.State, req.TimeoutMinutes)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrSwitchNotFound):
			writeNotFound(w, "switch not found")
		default:
			s.logger.Error("manual toggle failed",
				"device_id", deviceID, "switch_id", switchID, "error", err)
			writeInternalError(w, "failed to set switch state")
		}
		return
	}

	writeJSON(w, http.StatusOK, dev)
}
