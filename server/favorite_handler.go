package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"BeatFlow/logger"
)

// AddFavoriteHandler marks a beat as favorited. Idempotent.
func (h *APIHandler) AddFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	beatID := mux.Vars(r)["id"]

	beat, err := h.beatRepo.GetBeatByID(beatID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to look up beat")
		return
	}
	if beat == nil {
		respondWithError(w, http.StatusNotFound, "Beat not found")
		return
	}

	if err := h.favoriteRepo.Add(userID, beatID); err != nil {
		logger.Error("添加收藏失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to add favorite")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"status": "favorited"})
}

// RemoveFavoriteHandler unmarks a favorited beat. Idempotent.
func (h *APIHandler) RemoveFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	beatID := mux.Vars(r)["id"]
	if err := h.favoriteRepo.Remove(userID, beatID); err != nil {
		logger.Error("移除收藏失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to remove favorite")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ListFavoritesHandler returns the user's favorited beats with resolved
// URLs, skipping listings that have since been removed.
func (h *APIHandler) ListFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	ids, err := h.favoriteRepo.ListBeatIDs(userID)
	if err != nil {
		logger.Error("查询收藏失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list favorites")
		return
	}

	views := make([]beatView, 0, len(ids))
	for _, id := range ids {
		beat, err := h.beatRepo.GetBeatByID(id)
		if err != nil || beat == nil || !beat.IsActive {
			continue
		}
		views = append(views, h.beatView(beat))
	}
	respondWithJSON(w, http.StatusOK, views)
}
