package server

import (
	"encoding/json"
	"net/http"

	"BeatFlow/cache"
	"BeatFlow/config"
	"BeatFlow/core/agent"
	"BeatFlow/core/audio"
	"BeatFlow/logger"
	"BeatFlow/model"
	"BeatFlow/repository"
	"BeatFlow/storage"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	userRepo       repository.UserRepository
	beatRepo       repository.BeatRepository
	projectRepo    *repository.ProjectRepository
	purchaseRepo   *repository.PurchaseRepository
	favoriteRepo   *repository.FavoriteRepository
	audioProcessor audio.Processor
	workspaceCache *cache.WorkspaceCache
	mixAdvisor     agent.Advisor
	cfg            *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	userRepo repository.UserRepository,
	beatRepo repository.BeatRepository,
	projectRepo *repository.ProjectRepository,
	purchaseRepo *repository.PurchaseRepository,
	favoriteRepo *repository.FavoriteRepository,
	audioProcessor audio.Processor,
	workspaceCache *cache.WorkspaceCache,
	mixAdvisor agent.Advisor,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		userRepo:       userRepo,
		beatRepo:       beatRepo,
		projectRepo:    projectRepo,
		purchaseRepo:   purchaseRepo,
		favoriteRepo:   favoriteRepo,
		audioProcessor: audioProcessor,
		workspaceCache: workspaceCache,
		mixAdvisor:     mixAdvisor,
		cfg:            cfg,
	}
}

// respondWithJSON writes a JSON response with the given status code.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Error("写入响应失败", logger.ErrorField(err))
		}
	}
}

// respondWithError writes a JSON error body.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// trackFromBeat resolves storage paths into a playable Track.
func (h *APIHandler) trackFromBeat(b *model.Beat) model.Track {
	audioURL := storage.AudioURL(h.cfg.MinioPublicURL, b.AudioPath)
	coverURL := ""
	if b.CoverPath != "" {
		coverURL = storage.CoverURL(h.cfg.MinioPublicURL, b.CoverPath)
	}
	return model.TrackFromBeat(b, audioURL, coverURL)
}
