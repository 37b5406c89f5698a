package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"BeatFlow/logger"
	"BeatFlow/model"
)

// beatView is a beat plus its resolved public URLs.
type beatView struct {
	*model.Beat
	AudioURL string `json:"audioUrl"`
	CoverURL string `json:"coverUrl,omitempty"`
}

func (h *APIHandler) beatView(b *model.Beat) beatView {
	t := h.trackFromBeat(b)
	return beatView{Beat: b, AudioURL: t.AudioURL, CoverURL: t.CoverURL}
}

func (h *APIHandler) beatViews(beats []*model.Beat) []beatView {
	views := make([]beatView, 0, len(beats))
	for _, b := range beats {
		views = append(views, h.beatView(b))
	}
	return views
}

// ListBeatsHandler returns active marketplace beats matching the query
// string filters: genre, minBpm, maxBpm, maxPrice, search, limit.
func (h *APIHandler) ListBeatsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.BeatFilter{
		Genre:  q.Get("genre"),
		Search: q.Get("search"),
	}
	if v, err := strconv.Atoi(q.Get("minBpm")); err == nil {
		filter.MinBPM = v
	}
	if v, err := strconv.Atoi(q.Get("maxBpm")); err == nil {
		filter.MaxBPM = v
	}
	if v, err := strconv.ParseFloat(q.Get("maxPrice"), 64); err == nil {
		filter.MaxPrice = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	}

	beats, err := h.beatRepo.ListBeats(filter)
	if err != nil {
		logger.Error("查询 beat 列表失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list beats")
		return
	}
	respondWithJSON(w, http.StatusOK, h.beatViews(beats))
}

// GetBeatHandler returns a single beat by id.
func (h *APIHandler) GetBeatHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	beat, err := h.beatRepo.GetBeatByID(id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to look up beat")
		return
	}
	if beat == nil {
		respondWithError(w, http.StatusNotFound, "Beat not found")
		return
	}
	respondWithJSON(w, http.StatusOK, h.beatView(beat))
}

// ChartsHandler returns the most played beats.
func (h *APIHandler) ChartsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	beats, err := h.beatRepo.GetCharts(limit)
	if err != nil {
		logger.Error("查询榜单失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load charts")
		return
	}
	respondWithJSON(w, http.StatusOK, h.beatViews(beats))
}

// ProducerBeatsHandler returns the authenticated producer's own listings.
func (h *APIHandler) ProducerBeatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	beats, err := h.beatRepo.ListBeatsByProducer(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list beats")
		return
	}
	respondWithJSON(w, http.StatusOK, h.beatViews(beats))
}

// RecordPlayHandler bumps the play counter when a client starts a beat.
func (h *APIHandler) RecordPlayHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.beatRepo.IncrementPlays(id); err != nil {
		logger.Warn("记录播放失败", logger.String("beatId", id), logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to record play")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeactivateBeatHandler hides one of the producer's own listings.
func (h *APIHandler) DeactivateBeatHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.beatRepo.DeactivateBeat(id, userID); err != nil {
		respondWithError(w, http.StatusNotFound, "Beat not found or not yours")
		return
	}
	logger.Info("下架 beat", logger.String("beatId", id), logger.String("producerId", userID))
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
