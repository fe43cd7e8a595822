package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/farisgozi/attendify/internal/media"
	"github.com/farisgozi/attendify/internal/middleware"
	"github.com/farisgozi/attendify/internal/models"
	"github.com/farisgozi/attendify/internal/services"

	"github.com/rs/zerolog/log"
)

// AttendanceHandler handles attendance HTTP requests
type AttendanceHandler struct {
	attendanceService *services.AttendanceService
	mediaManager      *media.Manager
	hub               *services.Hub
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(attendanceService *services.AttendanceService, mediaManager *media.Manager, hub *services.Hub) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
		mediaManager:      mediaManager,
		hub:               hub,
	}
}

// CaptureRequest is the body for POST /api/v1/attendance/captures
type CaptureRequest struct {
	Photo    string          `json:"photo"` // base64, optionally a data URL
	Location models.Location `json:"location"`
}

// RecordResponse is an attendance record with freshly signed photo URLs
type RecordResponse struct {
	*models.AttendanceRecord
	CheckInPhotoURL  string `json:"check_in_photo_url,omitempty"`
	CheckOutPhotoURL string `json:"check_out_photo_url,omitempty"`
}

// TodayResponse is the body for GET /api/v1/attendance/today
type TodayResponse struct {
	NextAction services.NextAction `json:"next_action"`
	Record     *RecordResponse     `json:"record,omitempty"`
}

// Today handles GET /api/v1/attendance/today
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	status, err := h.attendanceService.ResolveToday(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve today's attendance")
		respondServiceError(w, err)
		return
	}

	resp := TodayResponse{NextAction: status.Action}
	if status.Record != nil {
		resp.Record = h.withPhotoURLs(ctx, status.Record)
	}

	respondJSON(w, http.StatusOK, resp)
}

// SubmitCapture handles POST /api/v1/attendance/captures
func (h *AttendanceHandler) SubmitCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	photo, err := decodePhoto(req.Photo)
	if err != nil {
		respondError(w, "photo must be base64 encoded", http.StatusBadRequest)
		return
	}

	rec, err := h.attendanceService.SubmitCapture(ctx, userID, photo, req.Location)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to submit capture")
		respondServiceError(w, err)
		return
	}

	h.hub.NotifyAttendanceUpdated(userID, rec.ID)

	log.Info().
		Str("user_id", userID).
		Str("record_id", rec.ID).
		Msg("Capture recorded")

	respondJSON(w, http.StatusCreated, h.withPhotoURLs(ctx, rec))
}

// History handles GET /api/v1/attendance
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	limit := 50
	offset := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil {
			limit = parsedLimit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil {
			offset = parsedOffset
		}
	}

	records, err := h.attendanceService.History(ctx, userID, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list attendance")
		respondServiceError(w, err)
		return
	}

	resp := make([]*RecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, h.withPhotoURLs(ctx, rec))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": resp,
		"total":   len(resp),
	})
}

// withPhotoURLs re-signs the record's stored photo references for
// display. A reference that cannot be resolved leaves its URL empty
// rather than failing the whole response.
func (h *AttendanceHandler) withPhotoURLs(ctx context.Context, rec *models.AttendanceRecord) *RecordResponse {
	resp := &RecordResponse{AttendanceRecord: rec}

	if rec.CheckInPhotoPath != nil {
		url, err := h.mediaManager.DisplayURL(ctx, *rec.CheckInPhotoPath)
		if err != nil {
			log.Error().Err(err).Str("record_id", rec.ID).Msg("Failed to sign check-in photo URL")
		} else {
			resp.CheckInPhotoURL = url
		}
	}
	if rec.CheckOutPhotoPath != nil {
		url, err := h.mediaManager.DisplayURL(ctx, *rec.CheckOutPhotoPath)
		if err != nil {
			log.Error().Err(err).Str("record_id", rec.ID).Msg("Failed to sign check-out photo URL")
		} else {
			resp.CheckOutPhotoURL = url
		}
	}
	return resp
}

// decodePhoto accepts raw base64 or a data URL.
func decodePhoto(s string) ([]byte, error) {
	if i := strings.Index(s, "base64,"); i >= 0 {
		s = s[i+len("base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}
