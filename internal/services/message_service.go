package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/repositories"
)

const noteMessageSent = "sent you a message"

type MessageService struct {
	messageRepo repositories.MessageRepository
}

func NewMessageService(messageRepo repositories.MessageRepository) *MessageService {
	return &MessageService{messageRepo: messageRepo}
}

// Send stores the message and notifies the receiver.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || senderID == receiverID {
		return nil, ErrInvalidInput
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	note := &models.Notification{
		UserID:   receiverID,
		SenderID: senderID,
		Type:     models.NotificationMessage,
		Content:  noteMessageSent,
	}
	if err := s.messageRepo.Send(ctx, msg, note); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}

func (s *MessageService) ListConversation(ctx context.Context, userID, peerID uuid.UUID) ([]*models.Message, error) {
	messages, err := s.messageRepo.ListConversation(ctx, userID, peerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	return messages, nil
}
