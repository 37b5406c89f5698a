package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"BeatFlow/logger"
	"BeatFlow/model"
)

// PurchaseBeatHandler records a purchase of a beat at its current price.
// Buying a beat you already own is rejected; producers cannot buy their
// own listings.
func (h *APIHandler) PurchaseBeatHandler(w http.ResponseWriter, r *http.Request) {
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
	if beat == nil || !beat.IsActive {
		respondWithError(w, http.StatusNotFound, "Beat not found")
		return
	}
	if beat.ProducerID == userID {
		respondWithError(w, http.StatusBadRequest, "You cannot buy your own beat")
		return
	}

	owned, err := h.purchaseRepo.HasPurchased(userID, beatID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to check ownership")
		return
	}
	if owned {
		respondWithError(w, http.StatusConflict, "Beat already purchased")
		return
	}

	purchase := &model.Purchase{
		ID:         uuid.New().String(),
		UserID:     userID,
		BeatID:     beatID,
		ProducerID: beat.ProducerID,
		Price:      beat.Price, // 价格快照
	}
	if err := h.purchaseRepo.Create(purchase); err != nil {
		logger.Error("创建购买记录失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to record purchase")
		return
	}

	logger.Info("购买 beat",
		logger.String("userId", userID),
		logger.String("beatId", beatID),
		logger.Float64("price", beat.Price))
	respondWithJSON(w, http.StatusCreated, purchase)
}

// ListPurchasesHandler returns the user's purchase history.
func (h *APIHandler) ListPurchasesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	purchases, err := h.purchaseRepo.ListByUser(userID)
	if err != nil {
		logger.Error("查询购买记录失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list purchases")
		return
	}
	respondWithJSON(w, http.StatusOK, purchases)
}
