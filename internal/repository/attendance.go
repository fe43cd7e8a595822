package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farisgozi/attendify/internal/errs"
	"github.com/farisgozi/attendify/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttendanceRepository handles database operations for attendance records
type AttendanceRepository struct {
	db *pgxpool.Pool
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// InsertCheckIn creates a day's record with only check-in fields set. The
// timestamp, photo path, and location land in one statement so a
// concurrent reader never observes a half-written record.
func (r *AttendanceRepository) InsertCheckIn(ctx context.Context, rec *models.AttendanceRecord) error {
	query := `
		INSERT INTO attendance (id, user_id, check_in, check_in_photo, check_in_location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.UserID, rec.CheckInAt, rec.CheckInPhotoPath, rec.CheckInLocation, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert check-in: %w", errs.ErrTransient, err)
	}
	return nil
}

// UpdateCheckOut adds check-out fields to an existing record, again as a
// single statement.
func (r *AttendanceRepository) UpdateCheckOut(ctx context.Context, rec *models.AttendanceRecord) error {
	query := `
		UPDATE attendance
		SET check_out = $1, check_out_photo = $2, check_out_location = $3
		WHERE id = $4
	`
	result, err := r.db.Exec(ctx, query,
		rec.CheckOutAt, rec.CheckOutPhotoPath, rec.CheckOutLocation, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update check-out: %w", errs.ErrTransient, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: attendance record %s", errs.ErrNotFound, rec.ID)
	}
	return nil
}

// GetSince returns the user's most recent record created at or after the
// given instant. More than one matching row is a data anomaly; the most
// recent by creation time wins and no repair is attempted.
func (r *AttendanceRepository) GetSince(ctx context.Context, userID string, since time.Time) (*models.AttendanceRecord, error) {
	query := `
		SELECT id, user_id, check_in, check_out, check_in_photo, check_out_photo,
		       check_in_location, check_out_location, created_at
		FROM attendance
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var rec models.AttendanceRecord
	err := r.db.QueryRow(ctx, query, userID, since).Scan(
		&rec.ID, &rec.UserID, &rec.CheckInAt, &rec.CheckOutAt,
		&rec.CheckInPhotoPath, &rec.CheckOutPhotoPath,
		&rec.CheckInLocation, &rec.CheckOutLocation, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no attendance record", errs.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to get attendance record: %w", errs.ErrTransient, err)
	}
	return &rec, nil
}

// ListByUser returns the user's records newest first with pagination.
func (r *AttendanceRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.AttendanceRecord, error) {
	query := `
		SELECT id, user_id, check_in, check_out, check_in_photo, check_out_photo,
		       check_in_location, check_out_location, created_at
		FROM attendance
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list attendance: %w", errs.ErrTransient, err)
	}
	defer rows.Close()

	var records []*models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.CheckInAt, &rec.CheckOutAt,
			&rec.CheckInPhotoPath, &rec.CheckOutPhotoPath,
			&rec.CheckInLocation, &rec.CheckOutLocation, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan attendance record: %w", errs.ErrTransient, err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating attendance records: %w", errs.ErrTransient, err)
	}

	return records, nil
}
