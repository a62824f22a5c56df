package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-smartthings/internal/smartthings"
)

// handleListRooms returns the room list cached by the reconciler.
func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	rooms := []smartthings.Room{}
	if s.catalog != nil {
		rooms = s.catalog.Rooms()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": rooms,
		"count": len(rooms),
	})
}

// handleListScenes returns the scene list cached by the reconciler.
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	scenes := []smartthings.Scene{}
	if s.catalog != nil {
		scenes = s.catalog.Scenes()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scenes": scenes,
		"count":  len(scenes),
	})
}

// handleExecuteScene triggers a scene execution in the cloud. Scene
// member states arrive as ordinary device events; no optimistic update
// is made.
func (s *Server) handleExecuteScene(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command dispatch is not configured")
		return
	}

	sceneID := chi.URLParam(r, "id")
	if err := s.dispatcher.ExecuteScene(r.Context(), sceneID); err != nil {
		s.writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"scene_id": sceneID,
	})
}
