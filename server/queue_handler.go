package server

import (
	"encoding/json"
	"net/http"

	"BeatFlow/cache"
	"BeatFlow/logger"
	"BeatFlow/model"
)

// 播放队列持久化:跨会话恢复播放列表,键位于 Redis。

// GetQueueHandler returns the user's saved playback queue.
func (h *APIHandler) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	tracks, err := cache.GetQueue(r.Context(), userID)
	if err != nil {
		logger.Error("读取播放队列失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load queue")
		return
	}
	if tracks == nil {
		tracks = []model.Track{}
	}
	respondWithJSON(w, http.StatusOK, tracks)
}

// SaveQueueHandler replaces the user's saved playback queue.
func (h *APIHandler) SaveQueueHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	var tracks []model.Track
	if err := json.NewDecoder(r.Body).Decode(&tracks); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := cache.SaveQueue(r.Context(), userID, tracks); err != nil {
		logger.Error("保存播放队列失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to save queue")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// ClearQueueHandler drops the user's saved playback queue.
func (h *APIHandler) ClearQueueHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if err := cache.ClearQueue(r.Context(), userID); err != nil {
		logger.Error("清空播放队列失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to clear queue")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
