package server

import (
	"encoding/json"
	"net/http"

	"BeatFlow/core/agent"
	"BeatFlow/core/workspace"
	"BeatFlow/logger"
)

// MixSuggestionsHandler runs the mixing advisor over a posted session
// snapshot and returns its notes.
func (h *APIHandler) MixSuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserIDFromContext(r.Context()); err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req struct {
		ProjectTitle string            `json:"projectTitle"`
		BeatTitle    string            `json:"beatTitle"`
		BPM          int               `json:"bpm"`
		Tracks       []workspace.Track `json:"tracks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	notes, err := h.mixAdvisor.Suggest(r.Context(), agent.MixRequest{
		ProjectTitle: req.ProjectTitle,
		BeatTitle:    req.BeatTitle,
		BPM:          req.BPM,
		Tracks:       req.Tracks,
	})
	if err != nil {
		logger.Error("混音建议生成失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to generate suggestions")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"suggestions": notes})
}
