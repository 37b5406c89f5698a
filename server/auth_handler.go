package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"BeatFlow/core/auth"
	"BeatFlow/logger"
	"BeatFlow/model"
)

type contextKey string

const (
	ctxUserID   contextKey = "userID"
	ctxUserName contextKey = "userName"
)

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"userType"`
}

// LoginHandler handles user login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("[Login] 解析请求体失败", logger.ErrorField(err))
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		logger.Error("[Login] 查询用户失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to look up user")
		return
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Name)
	if err != nil {
		logger.Error("[Login] 签发令牌失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	logger.Info("用户登录", logger.String("userId", user.ID))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// RegisterHandler handles user registration requests
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}
	if len(req.Password) < 6 {
		respondWithError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}
	if req.UserType != "producer" {
		req.UserType = "user"
	}

	existing, err := h.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		logger.Error("[Register] 查询用户失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to look up user")
		return
	}
	if existing != nil {
		respondWithError(w, http.StatusConflict, "Email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("[Register] 密码哈希失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		UserType:     req.UserType,
	}
	if err := h.userRepo.CreateUser(user); err != nil {
		logger.Error("[Register] 创建用户失败", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Name)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	logger.Info("用户注册", logger.String("userId", user.ID), logger.String("type", user.UserType))
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// ProfileHandler returns the authenticated user's account.
func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	user, err := h.userRepo.GetUserByID(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to look up user")
		return
	}
	if user == nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// AuthMiddleware is a middleware function that checks for a valid JWT token
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			respondWithError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		// Add user info to the request context
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxUserName, claims.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(ctxUserID).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetUserNameFromContext extracts the display name from the request context
func GetUserNameFromContext(ctx context.Context) (string, error) {
	name, ok := ctx.Value(ctxUserName).(string)
	if !ok {
		return "", fmt.Errorf("user name not found in context")
	}
	return name, nil
}
