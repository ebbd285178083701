package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection is one directed edge. An accepted link is two of them.
type Connection struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	ConnectedUserID uuid.UUID        `json:"connected_user_id"`
	Status          ConnectionStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
}

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionProvider ConnectionStatus = "provider"

	// ConnectionIncoming is derived for display and never stored.
	ConnectionIncoming ConnectionStatus = "incoming"
)
