package models

import (
	"time"

	"github.com/google/uuid"
)

type Presence struct {
	UserID   uuid.UUID      `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)
