package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"BeatFlow/logger"
	"BeatFlow/model"
)

// projectView is a project plus the resolved beat it was built on.
type projectView struct {
	model.Project
	Beat *beatView `json:"beat,omitempty"`
}

// CreateProjectHandler opens a workspace project over a purchased beat.
func (h *APIHandler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req struct {
		BeatID string `json:"beatId"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BeatID == "" {
		respondWithError(w, http.StatusBadRequest, "beatId is required")
		return
	}

	beat, err := h.beatRepo.GetBeatByID(req.BeatID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to look up beat")
		return
	}
	if beat == nil {
		respondWithError(w, http.StatusNotFound, "Beat not found")
		return
	}

	// 工作区项目只能基于已购买或自己上架的 beat
	if beat.ProducerID != userID {
		owned, err := h.purchaseRepo.HasPurchased(userID, req.BeatID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to check ownership")
			return
		}
		if !owned {
			respondWithError(w, http.StatusForbidden, "Purchase the beat before opening a project on it")
			return
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = beat.Title + " Session"
	}
	project := &model.Project{
		ID:     uuid.New().String(),
		UserID: userID,
		BeatID: req.BeatID,
		Title:  title,
	}
	if err := h.projectRepo.Create(project); err != nil {
		logger.Error("创建项目失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	logger.Info("创建工作区项目",
		logger.String("projectId", project.ID),
		logger.String("beatId", req.BeatID))
	bv := h.beatView(beat)
	respondWithJSON(w, http.StatusCreated, projectView{Project: *project, Beat: &bv})
}

// ListProjectsHandler returns the user's workspace projects.
func (h *APIHandler) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	projects, err := h.projectRepo.ListByUser(userID)
	if err != nil {
		logger.Error("查询项目失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}
	respondWithJSON(w, http.StatusOK, projects)
}

// GetProjectHandler returns one project with its beat resolved.
func (h *APIHandler) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	project, err := h.projectRepo.GetByID(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to look up project")
		return
	}
	if project == nil || project.UserID != userID {
		respondWithError(w, http.StatusNotFound, "Project not found")
		return
	}

	view := projectView{Project: *project}
	if beat, err := h.beatRepo.GetBeatByID(project.BeatID); err == nil && beat != nil {
		bv := h.beatView(beat)
		view.Beat = &bv
	}
	respondWithJSON(w, http.StatusOK, view)
}

// UpdateProjectHandler renames a project or updates its notes.
func (h *APIHandler) UpdateProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	var req struct {
		Title string `json:"title"`
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondWithError(w, http.StatusBadRequest, "Title is required")
		return
	}

	project := &model.Project{
		ID:     mux.Vars(r)["id"],
		UserID: userID,
		Title:  strings.TrimSpace(req.Title),
		Notes:  req.Notes,
	}
	if err := h.projectRepo.Update(project); err != nil {
		respondWithError(w, http.StatusNotFound, "Project not found")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteProjectHandler removes a project.
func (h *APIHandler) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.projectRepo.Delete(id, userID); err != nil {
		respondWithError(w, http.StatusNotFound, "Project not found")
		return
	}
	logger.Info("删除项目", logger.String("projectId", id))
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
