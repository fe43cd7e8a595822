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

// ProfileRepository handles database operations for profiles
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID retrieves a profile by user ID
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, username, website, avatar_url, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	var p models.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Username, &p.Website, &p.AvatarPath, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: profile for user %s", errs.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("%w: failed to get profile: %w", errs.ErrTransient, err)
	}
	return &p, nil
}

// Upsert creates or replaces the user's profile row
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, username, website, avatar_url, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			website = EXCLUDED.website,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at
	`
	p.UpdatedAt = time.Now()
	_, err := r.db.Exec(ctx, query, p.UserID, p.Username, p.Website, p.AvatarPath, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert profile: %w", errs.ErrTransient, err)
	}
	return nil
}
