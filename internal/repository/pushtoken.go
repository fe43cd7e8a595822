package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/farisgozi/attendify/internal/errs"
	"github.com/farisgozi/attendify/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PushTokenRepository handles database operations for push tokens
type PushTokenRepository struct {
	db *pgxpool.Pool
}

// NewPushTokenRepository creates a new push token repository
func NewPushTokenRepository(db *pgxpool.Pool) *PushTokenRepository {
	return &PushTokenRepository{db: db}
}

// Save stores or replaces a user's token for a platform
func (r *PushTokenRepository) Save(ctx context.Context, t *models.PushToken) error {
	query := `
		INSERT INTO push_tokens (user_id, token, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			token = EXCLUDED.token,
			created_at = EXCLUDED.created_at
	`
	t.CreatedAt = time.Now()
	_, err := r.db.Exec(ctx, query, t.UserID, t.Token, t.Platform, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to save push token: %w", errs.ErrTransient, err)
	}
	return nil
}

// GetByUserID returns all tokens registered for a user
func (r *PushTokenRepository) GetByUserID(ctx context.Context, userID string) ([]*models.PushToken, error) {
	return r.getByUsers(ctx, []string{userID})
}

// GetByUserIDs returns all tokens registered for a set of users
func (r *PushTokenRepository) GetByUserIDs(ctx context.Context, userIDs []string) ([]*models.PushToken, error) {
	return r.getByUsers(ctx, userIDs)
}

func (r *PushTokenRepository) getByUsers(ctx context.Context, userIDs []string) ([]*models.PushToken, error) {
	query := `
		SELECT user_id, token, platform, created_at
		FROM push_tokens
		WHERE user_id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get push tokens: %w", errs.ErrTransient, err)
	}
	defer rows.Close()

	var tokens []*models.PushToken
	for rows.Next() {
		var t models.PushToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.Platform, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan push token: %w", errs.ErrTransient, err)
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating push tokens: %w", errs.ErrTransient, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no push token registered", errs.ErrNotFound)
	}
	return tokens, nil
}
