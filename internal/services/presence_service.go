package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"go.uber.org/zap"
)

// PresenceService writes presence to the profile row, which announces the
// change to subscribers, and mirrors it into the Redis presence cache.
type PresenceService struct {
	profileRepo  repositories.ProfileRepository
	presenceRepo repositories.PresenceRepository
	log          *zap.Logger
}

func NewPresenceService(profileRepo repositories.ProfileRepository, presenceRepo repositories.PresenceRepository, log *zap.Logger) *PresenceService {
	return &PresenceService{
		profileRepo:  profileRepo,
		presenceRepo: presenceRepo,
		log:          log,
	}
}

func (s *PresenceService) WritePresence(ctx context.Context, userID uuid.UUID, status models.PresenceStatus, at time.Time) error {
	if err := s.profileRepo.UpdatePresence(ctx, userID, status, at); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}

	// The cache only speeds up reads; the profile row is authoritative.
	err := s.presenceRepo.SetPresence(ctx, &models.Presence{
		UserID:   userID,
		Status:   status,
		LastSeen: at,
	})
	if err != nil {
		s.log.Warn("failed to cache presence", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return nil
}

func (s *PresenceService) GetPresence(ctx context.Context, userID uuid.UUID) (*models.Presence, error) {
	presence, err := s.presenceRepo.GetPresence(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}
	return presence, nil
}

func (s *PresenceService) GetBulkPresence(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	presence, err := s.presenceRepo.GetBulkPresence(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}
	return presence, nil
}
