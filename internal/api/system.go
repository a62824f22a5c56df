package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/reconcile"
)

// handleBridgeStatus aggregates bridge, directory and dispatch status
// for monitoring.
func (s *Server) handleBridgeStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"version":    s.version,
		"uptime_s":   int64(time.Since(s.startedAt).Seconds()),
		"directory":  s.directory.GetStats(),
		"ws_clients": s.hub.ClientCount(),
	}
	if s.bridge != nil {
		status["bridge"] = s.bridge.Status()
	}
	if s.dispatcher != nil {
		status["dispatch"] = s.dispatcher.Stats()
	}

	writeJSON(w, http.StatusOK, status)
}

// handleStats returns the in-process operational counters: webhook
// ingest, dedup, dispatch and directory totals.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := map[string]any{
		"directory": s.directory.GetStats(),
	}
	if s.webhook != nil {
		stats["webhook"] = s.webhook.Stats()
	}
	if s.dispatcher != nil {
		stats["dispatch"] = s.dispatcher.Stats()
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleRefresh triggers an immediate reconciliation cycle. A cycle
// already in flight is reported as a conflict rather than queued.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "bridge is not configured")
		return
	}

	if err := s.bridge.ForceRefresh(r.Context()); err != nil {
		if errors.Is(err, reconcile.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "a sync cycle is already running")
			return
		}
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed"})
}
