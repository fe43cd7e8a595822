package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farisgozi/attendify/internal/errs"
	"github.com/farisgozi/attendify/internal/models"
	"github.com/farisgozi/attendify/internal/repository"
)

// ProfileService handles profile reads, updates, and avatar uploads.
type ProfileService struct {
	profileRepo *repository.ProfileRepository
	uploader    Uploader
	bucket      string
}

// NewProfileService creates a new profile service
func NewProfileService(profileRepo *repository.ProfileRepository, uploader Uploader, bucket string) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		uploader:    uploader,
		bucket:      bucket,
	}
}

// Get returns the user's profile. A user without a saved profile gets an
// empty one rather than an error.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return &models.Profile{UserID: userID}, nil
		}
		return nil, err
	}
	return p, nil
}

// Update upserts the user's profile row.
func (s *ProfileService) Update(ctx context.Context, p *models.Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	return s.profileRepo.Upsert(ctx, p)
}

// UploadAvatar stores the avatar bytes and records the object path on the
// profile. The stored value is the path, never a URL; display goes
// through the media manager.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, photo []byte) (string, error) {
	if len(photo) == 0 {
		return "", fmt.Errorf("%w: image is required", errs.ErrValidation)
	}

	path := fmt.Sprintf("%s-%d.jpg", userID, time.Now().UnixMilli())
	if err := s.uploader.Upload(ctx, s.bucket, path, photo, "image/jpeg"); err != nil {
		return "", err
	}

	p, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	p.AvatarPath = &path
	if err := s.profileRepo.Upsert(ctx, p); err != nil {
		return "", err
	}
	return path, nil
}
