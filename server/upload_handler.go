package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"BeatFlow/logger"
	"BeatFlow/model"
	"BeatFlow/storage"
)

const maxUploadSize = 100 << 20 // 100 MB

var audioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
}

// UploadBeatHandler creates a marketplace listing from a multipart form:
// an audio file, optional cover art, and listing metadata. The audio is
// probed for duration before it is stored, so every client sees the
// length without loading the source.
func (h *APIHandler) UploadBeatHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	user, err := h.userRepo.GetUserByID(userID)
	if err != nil || user == nil {
		respondWithError(w, http.StatusUnauthorized, "User not found")
		return
	}
	if user.UserType != "producer" {
		respondWithError(w, http.StatusForbidden, "Only producers can upload beats")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to parse upload form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		respondWithError(w, http.StatusBadRequest, "Title is required")
		return
	}
	bpm, _ := strconv.Atoi(r.FormValue("bpm"))
	price, _ := strconv.ParseFloat(r.FormValue("price"), 64)
	if price < 0 {
		respondWithError(w, http.StatusBadRequest, "Price cannot be negative")
		return
	}

	audioFile, audioHeader, err := r.FormFile("audio")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Audio file is required")
		return
	}
	defer audioFile.Close()

	ext := strings.ToLower(filepath.Ext(audioHeader.Filename))
	contentType, ok := audioExtensions[ext]
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Unsupported audio format")
		return
	}

	beatID := uuid.New().String()

	// ffprobe 需要本地文件,先落盘再上传
	tmpPath, size, err := spoolToTemp(audioFile, ext)
	if err != nil {
		logger.Error("暂存上传文件失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	defer os.Remove(tmpPath)

	duration, err := h.audioProcessor.GetAudioDuration(tmpPath)
	if err != nil {
		logger.Error("探测音频时长失败", logger.ErrorField(err))
		respondWithError(w, http.StatusBadRequest, "Could not read audio file")
		return
	}

	audioPath := beatID + ext
	tmpFile, err := os.Open(tmpPath)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}
	defer tmpFile.Close()

	if err := storage.UploadObject(r.Context(), h.cfg, "audio/"+audioPath, tmpFile, size, contentType); err != nil {
		logger.Error("上传音频到对象存储失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to store audio")
		return
	}

	coverPath := ""
	if coverFile, coverHeader, err := r.FormFile("cover"); err == nil {
		defer coverFile.Close()
		coverPath, err = h.storeCover(r, beatID, coverFile, coverHeader)
		if err != nil {
			logger.Warn("封面上传失败,忽略封面", logger.ErrorField(err))
			coverPath = ""
		}
	}

	beat := &model.Beat{
		ID:           beatID,
		ProducerID:   user.ID,
		ProducerName: user.Name,
		Title:        title,
		Genre:        strings.TrimSpace(r.FormValue("genre")),
		BPM:          bpm,
		Price:        price,
		Description:  strings.TrimSpace(r.FormValue("description")),
		AudioPath:    audioPath,
		CoverPath:    coverPath,
		Duration:     duration,
		IsActive:     true,
	}
	if err := h.beatRepo.CreateBeat(beat); err != nil {
		logger.Error("创建 beat 记录失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create beat")
		return
	}

	logger.Info("上架 beat",
		logger.String("beatId", beatID),
		logger.String("producerId", user.ID),
		logger.Float64("duration", float64(duration)))
	respondWithJSON(w, http.StatusCreated, h.beatView(beat))
}

func (h *APIHandler) storeCover(r *http.Request, beatID string, file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType := "image/jpeg"
	switch ext {
	case ".png":
		contentType = "image/png"
	case ".webp":
		contentType = "image/webp"
	case ".jpg", ".jpeg":
	default:
		return "", fmt.Errorf("unsupported cover format %s", ext)
	}

	coverPath := beatID + ext
	if err := storage.UploadObject(r.Context(), h.cfg, "covers/"+coverPath, file, header.Size, contentType); err != nil {
		return "", err
	}
	return coverPath, nil
}

// spoolToTemp copies an upload stream to a temp file and returns its
// path and size.
func spoolToTemp(src io.Reader, ext string) (string, int64, error) {
	tmp, err := os.CreateTemp("", "beatflow-upload-*"+ext)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	size, err := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to spool upload: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	return tmp.Name(), size, nil
}
