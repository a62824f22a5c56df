package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/dispatch"
	"github.com/nerrad567/gray-logic-smartthings/internal/smartthings"
)

// handleListDevices returns the device directory, optionally filtered by
// domain (?domain=lighting) or room (?room=<room-id>).
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []device.Device

	switch {
	case r.URL.Query().Get("domain") != "":
		devices = s.directory.ListByDomain(capability.Domain(r.URL.Query().Get("domain")))
	case r.URL.Query().Get("room") != "":
		devices = s.directory.ListByRoom(r.URL.Query().Get("room"))
	default:
		devices = s.directory.List()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleDeviceStats returns directory-wide counters for monitoring.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.directory.GetStats())
}

// handleGetDevice returns a single device with its current attributes.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.directory.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device":     dev,
		"attributes": dev.AttributeRecords(),
	})
}

// handleGetDeviceStatus returns just the attribute values of a device,
// flattened for clients that only care about state.
func (s *Server) handleGetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	dev, err := s.directory.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":  dev.ID,
		"health":     dev.Health,
		"attributes": dev.AttributeRecords(),
	})
}

// handleGetDeviceHistory returns recent attribute change history for a
// device. The ?limit= parameter caps the entry count (clamped by the
// recorder).
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "attribute history is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.directory.Snapshot(id); err != nil {
		writeNotFound(w, "device not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("history query failed", "device_id", id, "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"entries":   entries,
		"count":     len(entries),
	})
}

// commandRequest is the body of POST /devices/{id}/commands.
type commandRequest struct {
	Component  string `json:"component,omitempty"`
	Capability string `json:"capability"`
	Command    string `json:"command"`
	Arguments  []any  `json:"arguments,omitempty"`
}

// handleSendCommands validates and dispatches one device command to the
// cloud. The response reports acceptance by the cloud, not physical
// completion; confirmed state arrives via events and the WebSocket.
func (s *Server) handleSendCommands(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command dispatch is not configured")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.dispatcher.Send(r.Context(), dispatch.Request{
		DeviceID:   chi.URLParam(r, "id"),
		Component:  req.Component,
		Capability: capability.Capability(req.Capability),
		Command:    req.Command,
		Arguments:  req.Arguments,
	})
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"command": req.Command,
	})
}

// writeDispatchError maps dispatch failures onto HTTP responses.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, dispatch.ErrUnsupportedCommand):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, smartthings.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "cloud rate limit hit, retry later")
	default:
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	}
}
