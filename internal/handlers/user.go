package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/farisgozi/attendify/internal/middleware"
	"github.com/farisgozi/attendify/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles account and session HTTP requests
type UserHandler struct {
	userService *services.UserService
	hub         *services.Hub
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, hub *services.Hub) *UserHandler {
	return &UserHandler{
		userService: userService,
		hub:         hub,
	}
}

// SignUpRequest is the body for POST /api/v1/users
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// SignInRequest is the body for POST /api/v1/sessions
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles POST /api/v1/users
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.userService.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign up user")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", session.UserID).Msg("User created")
	respondJSON(w, http.StatusCreated, session)
}

// SignIn handles POST /api/v1/sessions
func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.userService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

// GetSession handles GET /api/v1/session
func (h *UserHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userService.GetSession(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// SignOut handles DELETE /api/v1/session. Tokens are stateless; the
// point of the endpoint is the session-change fan-out to the user's
// other devices.
func (h *UserHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	h.hub.NotifySignedOut(userID)

	log.Info().Str("user_id", userID).Msg("User signed out")
	w.WriteHeader(http.StatusNoContent)
}
