package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/farisgozi/attendify/internal/media"
	"github.com/farisgozi/attendify/internal/middleware"
	"github.com/farisgozi/attendify/internal/models"
	"github.com/farisgozi/attendify/internal/services"

	"github.com/rs/zerolog/log"
)

// ProfileHandler handles profile HTTP requests
type ProfileHandler struct {
	profileService *services.ProfileService
	avatarManager  *media.Manager
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *services.ProfileService, avatarManager *media.Manager) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		avatarManager:  avatarManager,
	}
}

// ProfileResponse is a profile with a signed avatar URL
type ProfileResponse struct {
	*models.Profile
	AvatarURL string `json:"avatar_signed_url,omitempty"`
}

// UpdateProfileRequest is the body for PUT /api/v1/profile
type UpdateProfileRequest struct {
	Username *string `json:"username"`
	Website  *string `json:"website"`
}

// AvatarRequest is the body for POST /api/v1/profile/avatar
type AvatarRequest struct {
	Photo string `json:"photo"` // base64, optionally a data URL
}

// Get handles GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	p, err := h.profileService.Get(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := ProfileResponse{Profile: p}
	if p.AvatarPath != nil {
		url, err := h.avatarManager.Resolve(ctx, *p.AvatarPath)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to sign avatar URL")
		} else {
			resp.AvatarURL = url
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Update handles PUT /api/v1/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.profileService.Get(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	p.Username = req.Username
	p.Website = req.Website

	if err := h.profileService.Update(ctx, p); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update profile")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// UploadAvatar handles POST /api/v1/profile/avatar
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req AvatarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	photo, err := decodePhoto(req.Photo)
	if err != nil {
		respondError(w, "photo must be base64 encoded", http.StatusBadRequest)
		return
	}

	path, err := h.profileService.UploadAvatar(ctx, userID, photo)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to upload avatar")
		respondServiceError(w, err)
		return
	}

	url, err := h.avatarManager.Resolve(ctx, path)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to sign avatar URL")
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"avatar_url":        path,
		"avatar_signed_url": url,
	})
}
