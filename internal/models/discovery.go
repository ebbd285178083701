package models

import (
	"time"

	"github.com/google/uuid"
)

type DiscoveryMethod string

const (
	DiscoveryBluetooth DiscoveryMethod = "bluetooth"
	DiscoveryNFC       DiscoveryMethod = "nfc"
)

// NearbyUser is a profile as rendered on the discovery screen. ConnectionStatus
// is empty when no connection exists in either direction.
type NearbyUser struct {
	ID               uuid.UUID        `json:"id"`
	Username         string           `json:"username"`
	AvatarURL        string           `json:"avatar_url"`
	LastSeen         time.Time        `json:"last_seen"`
	Status           PresenceStatus   `json:"status"`
	ConnectionStatus ConnectionStatus `json:"connection_status,omitempty"`
}

func NearbyUserFromProfile(p *Profile) NearbyUser {
	return NearbyUser{
		ID:        p.ID,
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
		LastSeen:  p.LastSeen,
		Status:    p.Status,
	}
}

// Acknowledgement is the transient "connected" banner shown after an
// auto-accepted link.
type Acknowledgement struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
}

type DiscoverySnapshot struct {
	BluetoothUsers    []NearbyUser     `json:"bluetooth_users"`
	NearbyUsers       []NearbyUser     `json:"nearby_users"`
	UnconnectedUsers  []NearbyUser     `json:"unconnected_users"`
	Message           string           `json:"message"`
	BluetoothScanning bool             `json:"bluetooth_scanning"`
	NFCScanning       bool             `json:"nfc_scanning"`
	Acknowledgement   *Acknowledgement `json:"acknowledgement,omitempty"`
}
