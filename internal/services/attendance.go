package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farisgozi/attendify/internal/errs"
	"github.com/farisgozi/attendify/internal/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NextAction is the capture action derived from the day's record.
type NextAction string

const (
	ActionCheckIn  NextAction = "check_in"
	ActionCheckOut NextAction = "check_out"
	ActionComplete NextAction = "complete"
)

var (
	checkInsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendify_check_ins_total",
		Help: "Number of check-in records created.",
	})
	checkOutsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendify_check_outs_total",
		Help: "Number of check-out updates recorded.",
	})
)

// AttendanceStore is the persistence surface the resolver needs.
type AttendanceStore interface {
	InsertCheckIn(ctx context.Context, rec *models.AttendanceRecord) error
	UpdateCheckOut(ctx context.Context, rec *models.AttendanceRecord) error
	GetSince(ctx context.Context, userID string, since time.Time) (*models.AttendanceRecord, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.AttendanceRecord, error)
}

// Uploader pushes photo bytes into object storage.
type Uploader interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
}

// TodayStatus is the resolver's decision for the current day.
type TodayStatus struct {
	Action NextAction               `json:"next_action"`
	Record *models.AttendanceRecord `json:"record,omitempty"`
}

// AttendanceService derives the next capture action from the day's record
// and performs the insert/update mutation for a submitted capture.
type AttendanceService struct {
	store    AttendanceStore
	uploader Uploader
	bucket   string
	now      func() time.Time
	loc      *time.Location
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(store AttendanceStore, uploader Uploader, bucket string) *AttendanceService {
	return &AttendanceService{
		store:    store,
		uploader: uploader,
		bucket:   bucket,
		now:      time.Now,
		loc:      time.Local,
	}
}

// startOfToday is local midnight of the current date.
func (s *AttendanceService) startOfToday() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

// ResolveToday returns the day's record, if any, and the next action:
// no record means check-in, a record with only check-in set means
// check-out, and a record with both set means the day is complete.
func (s *AttendanceService) ResolveToday(ctx context.Context, userID string) (*TodayStatus, error) {
	rec, err := s.store.GetSince(ctx, userID, s.startOfToday())
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return &TodayStatus{Action: ActionCheckIn}, nil
		}
		return nil, err
	}

	switch {
	case rec.CheckInAt == nil:
		return &TodayStatus{Action: ActionCheckIn, Record: rec}, nil
	case rec.CheckOutAt == nil:
		return &TodayStatus{Action: ActionCheckOut, Record: rec}, nil
	default:
		return &TodayStatus{Action: ActionComplete, Record: rec}, nil
	}
}

// SubmitCapture records a capture: the photo is uploaded first, then the
// timestamp, photo path, and location are written to the row in a single
// mutation. A row failure after a successful upload orphans the object;
// the caller may resubmit immediately.
func (s *AttendanceService) SubmitCapture(ctx context.Context, userID string, photo []byte, loc models.Location) (*models.AttendanceRecord, error) {
	if len(photo) == 0 {
		return nil, fmt.Errorf("%w: photo is required", errs.ErrValidation)
	}

	status, err := s.ResolveToday(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status.Action == ActionComplete {
		return nil, fmt.Errorf("%w: attendance already complete for today", errs.ErrValidation)
	}

	now := s.now()
	path := fmt.Sprintf("%s/%s_%s_%d.jpg", userID, userID, status.Action, now.UnixMilli())
	if err := s.uploader.Upload(ctx, s.bucket, path, photo, "image/jpeg"); err != nil {
		return nil, err
	}

	if status.Action == ActionCheckIn {
		rec := &models.AttendanceRecord{
			ID:               uuid.New().String(),
			UserID:           userID,
			CheckInAt:        &now,
			CheckInPhotoPath: &path,
			CheckInLocation:  &loc,
			CreatedAt:        now,
		}
		if err := s.store.InsertCheckIn(ctx, rec); err != nil {
			return nil, err
		}
		checkInsRecorded.Inc()
		return rec, nil
	}

	rec := *status.Record
	rec.CheckOutAt = &now
	rec.CheckOutPhotoPath = &path
	rec.CheckOutLocation = &loc
	if err := s.store.UpdateCheckOut(ctx, &rec); err != nil {
		return nil, err
	}
	checkOutsRecorded.Inc()
	return &rec, nil
}

// History returns the user's records newest first.
func (s *AttendanceService) History(ctx context.Context, userID string, limit, offset int) ([]*models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByUser(ctx, userID, limit, offset)
}
