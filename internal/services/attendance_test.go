package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/farisgozi/attendify/internal/errs"
	"github.com/farisgozi/attendify/internal/models"
)

// fakeAttendanceStore holds at most one record and records call order.
type fakeAttendanceStore struct {
	record    *models.AttendanceRecord
	insertErr error
	updateErr error
	ops       *[]string
}

func (f *fakeAttendanceStore) InsertCheckIn(ctx context.Context, rec *models.AttendanceRecord) error {
	*f.ops = append(*f.ops, "insert")
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *rec
	f.record = &cp
	return nil
}

func (f *fakeAttendanceStore) UpdateCheckOut(ctx context.Context, rec *models.AttendanceRecord) error {
	*f.ops = append(*f.ops, "update")
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.record == nil || f.record.ID != rec.ID {
		return fmt.Errorf("%w: attendance record %s", errs.ErrNotFound, rec.ID)
	}
	cp := *rec
	f.record = &cp
	return nil
}

func (f *fakeAttendanceStore) GetSince(ctx context.Context, userID string, since time.Time) (*models.AttendanceRecord, error) {
	if f.record == nil || f.record.UserID != userID || f.record.CreatedAt.Before(since) {
		return nil, fmt.Errorf("%w: no attendance record", errs.ErrNotFound)
	}
	cp := *f.record
	return &cp, nil
}

func (f *fakeAttendanceStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.AttendanceRecord, error) {
	if f.record == nil {
		return nil, nil
	}
	cp := *f.record
	return []*models.AttendanceRecord{&cp}, nil
}

type fakeUploader struct {
	paths []string
	err   error
	ops   *[]string
}

func (f *fakeUploader) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	*f.ops = append(*f.ops, "upload")
	if f.err != nil {
		return f.err
	}
	f.paths = append(f.paths, path)
	return nil
}

func newTestAttendanceService(store *fakeAttendanceStore, up *fakeUploader) *AttendanceService {
	s := NewAttendanceService(store, up, "attendance")
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.loc = time.UTC
	return s
}

func TestResolveTodayNoRecord(t *testing.T) {
	t.Parallel()
	ops := []string{}
	store := &fakeAttendanceStore{ops: &ops}
	s := newTestAttendanceService(store, &fakeUploader{ops: &ops})

	status, err := s.ResolveToday(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ResolveToday: %v", err)
	}
	if status.Action != ActionCheckIn {
		t.Errorf("action: got %v, want check_in", status.Action)
	}
	if status.Record != nil {
		t.Errorf("record: got %+v, want nil", status.Record)
	}
}

func TestResolveTodayCheckOutPending(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	ops := []string{}
	store := &fakeAttendanceStore{
		record: &models.AttendanceRecord{ID: "r1", UserID: "u1", CheckInAt: &now, CreatedAt: now},
		ops:    &ops,
	}
	s := newTestAttendanceService(store, &fakeUploader{ops: &ops})

	status, err := s.ResolveToday(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ResolveToday: %v", err)
	}
	if status.Action != ActionCheckOut {
		t.Errorf("action: got %v, want check_out", status.Action)
	}
}

func TestResolveTodayComplete(t *testing.T) {
	t.Parallel()
	in := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	out := in.Add(8 * time.Hour)
	ops := []string{}
	store := &fakeAttendanceStore{
		record: &models.AttendanceRecord{ID: "r1", UserID: "u1", CheckInAt: &in, CheckOutAt: &out, CreatedAt: in},
		ops:    &ops,
	}
	s := newTestAttendanceService(store, &fakeUploader{ops: &ops})

	status, err := s.ResolveToday(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ResolveToday: %v", err)
	}
	if status.Action != ActionComplete {
		t.Errorf("action: got %v, want complete", status.Action)
	}
	if len(ops) != 0 {
		t.Errorf("ops: got %v, want no mutations", ops)
	}
}

func TestResolveTodayIgnoresYesterday(t *testing.T) {
	t.Parallel()
	yesterday := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	ops := []string{}
	store := &fakeAttendanceStore{
		record: &models.AttendanceRecord{ID: "r0", UserID: "u1", CheckInAt: &yesterday, CreatedAt: yesterday},
		ops:    &ops,
	}
	s := newTestAttendanceService(store, &fakeUploader{ops: &ops})

	status, err := s.ResolveToday(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ResolveToday: %v", err)
	}
	if status.Action != ActionCheckIn {
		t.Errorf("action: got %v, want check_in for a new day", status.Action)
	}
}

func TestResolveTodayIdempotent(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	ops := []string{}
	store := &fakeAttendanceStore{
		record: &models.AttendanceRecord{ID: "r1", UserID: "u1", CheckInAt: &now, CreatedAt: now},
		ops:    &ops,
	}
	s := newTestAttendanceService(store, &fakeUploader{ops: &ops})

	first, err := s.ResolveToday(context.Background(), "u1")
	if err != nil {
		t.Fatalf("first ResolveToday: %v", err)
	}
	second, err := s.ResolveToday(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second ResolveToday: %v", err)
	}
	if first.Action != second.Action {
		t.Errorf("decisions differ: %v then %v", first.Action, second.Action)
	}
}

func TestSubmitCaptureCheckIn(t *testing.T) {
	t.Parallel()
	ops := []string{}
	store := &fakeAttendanceStore{ops: &ops}
	up := &fakeUploader{ops: &ops}
	s := newTestAttendanceService(store, up)

	loc := models.Location{Latitude: -6.2, Longitude: 106.8, Accuracy: 5}
	rec, err := s.SubmitCapture(context.Background(), "u1", []byte("jpeg"), loc)
	if err != nil {
		t.Fatalf("SubmitCapture: %v", err)
	}

	if rec.CheckInAt == nil {
		t.Fatal("check-in timestamp not set")
	}
	if rec.CheckOutAt != nil {
		t.Error("check-out timestamp should be absent")
	}
	if rec.CheckInPhotoPath == nil || *rec.CheckInPhotoPath != up.paths[0] {
		t.Errorf("photo path: got %v, want %q", rec.CheckInPhotoPath, up.paths[0])
	}
	if rec.CheckInLocation == nil || *rec.CheckInLocation != loc {
		t.Errorf("location: got %v, want %v", rec.CheckInLocation, loc)
	}

	// Upload happens-before the row mutation.
	want := []string{"upload", "insert"}
	if len(ops) != 2 || ops[0] != want[0] || ops[1] != want[1] {
		t.Errorf("ops: got %v, want %v", ops, want)
	}
}

func TestSubmitCaptureCheckOutUpdatesInPlace(t *testing.T) {
	t.Parallel()
	ops := []string{}
	store := &fakeAttendanceStore{ops: &ops}
	up := &fakeUploader{ops: &ops}
	s := newTestAttendanceService(store, up)

	loc := models.Location{Latitude: -6.2, Longitude: 106.8, Accuracy: 5}
	first, err := s.SubmitCapture(context.Background(), "u1", []byte("jpeg"), loc)
	if err != nil {
		t.Fatalf("first SubmitCapture: %v", err)
	}

	second, err := s.SubmitCapture(context.Background(), "u1", []byte("jpeg2"), loc)
	if err != nil {
		t.Fatalf("second SubmitCapture: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("record id changed: %q then %q", first.ID, second.ID)
	}
	if second.CheckOutAt == nil {
		t.Fatal("check-out timestamp not set")
	}
	if second.CheckInAt == nil || !second.CheckInAt.Equal(*first.CheckInAt) {
		t.Error("check-in timestamp must be unchanged by check-out")
	}
	if second.CheckOutPhotoPath == nil || *second.CheckOutPhotoPath != up.paths[1] {
		t.Errorf("check-out photo path: got %v, want %q", second.CheckOutPhotoPath, up.paths[1])
	}

	want := []string{"upload", "insert", "upload", "update"}
	if len(ops) != 4 {
		t.Fatalf("ops: got %v, want %v", ops, want)
	}
	for i, w := range want {
		if ops[i] != w {
			t.Errorf("op %d: got %q, want %q", i, ops[i], w)
		}
	}
}

func TestSubmitCaptureRejectedWhenComplete(t *testing.T) {
	t.Parallel()
	in := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	out := in.Add(8 * time.Hour)
	ops := []string{}
	store := &fakeAttendanceStore{
		record: &models.AttendanceRecord{ID: "r1", UserID: "u1", CheckInAt: &in, CheckOutAt: &out, CreatedAt: in},
		ops:    &ops,
	}
	s := newTestAttendanceService(store, &fakeUploader{ops: &ops})

	_, err := s.SubmitCapture(context.Background(), "u1", []byte("jpeg"), models.Location{})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("error: got %v, want ErrValidation", err)
	}
	if len(ops) != 0 {
		t.Errorf("ops: got %v, want none", ops)
	}
}

func TestSubmitCaptureUploadFailureSkipsMutation(t *testing.T) {
	t.Parallel()
	ops := []string{}
	store := &fakeAttendanceStore{ops: &ops}
	up := &fakeUploader{ops: &ops, err: fmt.Errorf("%w: storage unavailable", errs.ErrTransient)}
	s := newTestAttendanceService(store, up)

	_, err := s.SubmitCapture(context.Background(), "u1", []byte("jpeg"), models.Location{})
	if !errors.Is(err, errs.ErrTransient) {
		t.Fatalf("error: got %v, want ErrTransient", err)
	}
	for _, op := range ops {
		if op == "insert" || op == "update" {
			t.Errorf("row mutation %q performed despite upload failure", op)
		}
	}
}

func TestSubmitCaptureRowFailureLeavesOrphanAndIsRetryable(t *testing.T) {
	t.Parallel()
	ops := []string{}
	store := &fakeAttendanceStore{
		ops:       &ops,
		insertErr: fmt.Errorf("%w: insert failed", errs.ErrTransient),
	}
	up := &fakeUploader{ops: &ops}
	s := newTestAttendanceService(store, up)

	_, err := s.SubmitCapture(context.Background(), "u1", []byte("jpeg"), models.Location{})
	if !errors.Is(err, errs.ErrTransient) {
		t.Fatalf("error: got %v, want ErrTransient", err)
	}
	// The upload succeeded and stays orphaned; no record exists.
	if len(up.paths) != 1 {
		t.Errorf("uploads: got %d, want 1", len(up.paths))
	}
	if store.record != nil {
		t.Errorf("record: got %+v, want none", store.record)
	}

	// An immediate resubmit succeeds.
	store.insertErr = nil
	rec, err := s.SubmitCapture(context.Background(), "u1", []byte("jpeg"), models.Location{})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if rec.CheckInAt == nil {
		t.Error("resubmitted capture should record a check-in")
	}
}
