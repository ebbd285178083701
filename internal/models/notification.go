package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	SenderID  uuid.UUID        `json:"sender_id"`
	Type      NotificationType `json:"type"`
	Content   string           `json:"content"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`

	Sender *ProfileSummary `json:"sender,omitempty"`
}

type NotificationType string

const (
	NotificationConnectionRequest  NotificationType = "connection_request"
	NotificationConnectionAccepted NotificationType = "connection_accepted"
	NotificationMessage            NotificationType = "message"
)
