package handlers

import (
	"net/http"
	"time"

	"github.com/farisgozi/attendify/internal/media"

	"github.com/rs/zerolog/log"
)

// MediaHandler handles signed URL resolution and image fetch requests
type MediaHandler struct {
	attendanceManager *media.Manager
	avatarManager     *media.Manager
	maxAttempts       int
	baseDelay         time.Duration
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(attendanceManager, avatarManager *media.Manager, maxAttempts int, baseDelay time.Duration) *MediaHandler {
	return &MediaHandler{
		attendanceManager: attendanceManager,
		avatarManager:     avatarManager,
		maxAttempts:       maxAttempts,
		baseDelay:         baseDelay,
	}
}

// ResolveURL handles GET /api/v1/media/url?path=...&bucket=...
func (h *MediaHandler) ResolveURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, "path is required", http.StatusBadRequest)
		return
	}

	manager := h.attendanceManager
	if r.URL.Query().Get("bucket") == "avatars" {
		manager = h.avatarManager
	}

	url, err := manager.Resolve(ctx, path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to resolve media URL")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// FetchImage handles GET /api/v1/media/image?path=...&bucket=... It
// resolves the path to a signed URL and proxies the bytes, retrying
// transient fetch failures with exponential backoff. Each request gets
// its own loader; loaders are single-use.
func (h *MediaHandler) FetchImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, "path is required", http.StatusBadRequest)
		return
	}

	manager := h.attendanceManager
	if r.URL.Query().Get("bucket") == "avatars" {
		manager = h.avatarManager
	}

	url, err := manager.DisplayURL(ctx, path)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	loader := media.NewLoader(nil, h.maxAttempts, h.baseDelay)
	data, err := loader.Load(ctx, url)
	if err != nil {
		log.Error().Err(err).
			Str("path", path).
			Stringer("state", loader.State()).
			Int("attempts", loader.Attempt()).
			Msg("Failed to fetch image")
		// The cached URL may have been revoked upstream; drop it so the
		// next request signs a fresh one.
		manager.Forget(path)
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
