package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"go.uber.org/zap"
)

var ErrNotLinked = errors.New("users are not linked")

const (
	noteUnlinkedPeer = "has unlinked with you"
	noteUnlinkedSelf = "You have unlinked with this user"
)

type LinkService struct {
	profileRepo    repositories.ProfileRepository
	connectionRepo repositories.ConnectionRepository
	log            *zap.Logger
}

func NewLinkService(profileRepo repositories.ProfileRepository, connectionRepo repositories.ConnectionRepository, log *zap.Logger) *LinkService {
	return &LinkService{
		profileRepo:    profileRepo,
		connectionRepo: connectionRepo,
		log:            log,
	}
}

// ListLinks returns the profiles holding an accepted link with userID in
// either direction.
func (s *LinkService) ListLinks(ctx context.Context, userID uuid.UUID) ([]*models.Profile, error) {
	ids, err := s.connectionRepo.ListLinkedUserIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Profile{}, nil
	}

	profiles, err := s.profileRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get linked profiles: %w", err)
	}
	return profiles, nil
}

// Unlink removes the link and the conversation between userID and peerID,
// notifying both sides.
func (s *LinkService) Unlink(ctx context.Context, userID, peerID uuid.UUID) error {
	if userID == peerID {
		return ErrInvalidInput
	}

	notes := []*models.Notification{
		{
			UserID:   peerID,
			SenderID: userID,
			Type:     models.NotificationConnectionRequest,
			Content:  noteUnlinkedPeer,
		},
		{
			UserID:   userID,
			SenderID: peerID,
			Type:     models.NotificationConnectionRequest,
			Content:  noteUnlinkedSelf,
		},
	}

	err := s.connectionRepo.Unlink(ctx, userID, peerID, notes)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotLinked
	}
	if err != nil {
		return fmt.Errorf("failed to unlink: %w", err)
	}

	s.log.Info("users unlinked",
		zap.String("user_id", userID.String()),
		zap.String("peer_id", peerID.String()),
	)
	return nil
}
