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

var ErrNotificationNotFound = errors.New("notification not found")

const noteRequestAccepted = "accepted your connection request"

type NotificationService struct {
	notificationRepo repositories.NotificationRepository
	connectionRepo   repositories.ConnectionRepository
	log              *zap.Logger
}

func NewNotificationService(notificationRepo repositories.NotificationRepository, connectionRepo repositories.ConnectionRepository, log *zap.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		connectionRepo:   connectionRepo,
		log:              log,
	}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	notifications, err := s.notificationRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	return notifications, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	err := s.notificationRepo.MarkRead(ctx, notificationID, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	err := s.notificationRepo.Delete(ctx, notificationID, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// RespondToRequest accepts or declines the request requesterID sent to
// userID, then marks the notification read. A request that was already
// handled elsewhere only marks the notification read.
func (s *NotificationService) RespondToRequest(ctx context.Context, userID, notificationID, requesterID uuid.UUID, accept bool) error {
	if accept {
		note := &models.Notification{
			UserID:   requesterID,
			SenderID: userID,
			Type:     models.NotificationConnectionAccepted,
			Content:  noteRequestAccepted,
		}
		err := s.connectionRepo.Accept(ctx, requesterID, userID, note)
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.Debug("no pending request to accept", zap.String("requester_id", requesterID.String()))
		} else if err != nil {
			return fmt.Errorf("failed to accept request: %w", err)
		}
	} else {
		if _, err := s.connectionRepo.Decline(ctx, requesterID, userID, nil); err != nil {
			return fmt.Errorf("failed to decline request: %w", err)
		}
	}

	return s.MarkRead(ctx, userID, notificationID)
}
