package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/farisgozi/attendify/internal/middleware"
	"github.com/farisgozi/attendify/internal/models"
	"github.com/farisgozi/attendify/internal/repository"
	"github.com/farisgozi/attendify/internal/services"

	"github.com/rs/zerolog/log"
)

// NotificationHandler handles push token and notification HTTP requests
type NotificationHandler struct {
	notificationService *services.NotificationService
	tokenRepo           *repository.PushTokenRepository
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService, tokenRepo *repository.PushTokenRepository) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		tokenRepo:           tokenRepo,
	}
}

// RegisterTokenRequest is the body for POST /api/v1/push-tokens
type RegisterTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// SendRequest is the body for POST /api/v1/notifications
type SendRequest struct {
	UserIDs []string          `json:"user_ids"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

// RegisterToken handles POST /api/v1/push-tokens
func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		respondError(w, "token is required", http.StatusBadRequest)
		return
	}
	if req.Platform == "" {
		req.Platform = "expo"
	}

	token := &models.PushToken{
		UserID:   userID,
		Token:    req.Token,
		Platform: req.Platform,
	}
	if err := h.tokenRepo.Save(ctx, token); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to save push token")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Str("platform", req.Platform).Msg("Push token registered")
	respondJSON(w, http.StatusCreated, token)
}

// Send handles POST /api/v1/notifications
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Default to self-notification when no recipients are named.
	if len(req.UserIDs) == 0 {
		req.UserIDs = []string{middleware.GetUserID(ctx)}
	}

	if err := h.notificationService.NotifyMany(ctx, req.UserIDs, req.Title, req.Body, req.Data); err != nil {
		log.Error().Err(err).Strs("user_ids", req.UserIDs).Msg("Failed to queue notification")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
