package models

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID           uuid.UUID      `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email,omitempty"`
	PasswordHash string         `json:"-"`
	AvatarURL    string         `json:"avatar_url"`
	Bio          string         `json:"bio,omitempty"`
	Occupation   string         `json:"occupation,omitempty"`
	Location     string         `json:"location,omitempty"`
	Website      string         `json:"website,omitempty"`
	Status       PresenceStatus `json:"status"`
	LastSeen     time.Time      `json:"last_seen"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ProfileSummary is the sender/peer projection embedded in other payloads.
type ProfileSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
}

func (p *Profile) Summary() ProfileSummary {
	return ProfileSummary{ID: p.ID, Username: p.Username, AvatarURL: p.AvatarURL}
}
