package discovery

import (
	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
)

// action is one change to the discovery snapshot. apply returns a new
// snapshot and never edits the slices of the one it was given.
type action interface {
	apply(s models.DiscoverySnapshot) models.DiscoverySnapshot
}

// replaceFromFetch is the result of a full refresh: nearby becomes the
// Bluetooth set annotated with fresh statuses, and unconnected is replaced.
type replaceFromFetch struct {
	statuses    map[uuid.UUID]models.ConnectionStatus
	unconnected func(bluetooth []models.NearbyUser) []models.NearbyUser
}

func (a replaceFromFetch) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	s.NearbyUsers = Annotate(s.BluetoothUsers, a.statuses)
	s.UnconnectedUsers = a.unconnected(s.BluetoothUsers)
	return s
}

// replaceUnconnected leaves the Bluetooth and nearby sets untouched.
type replaceUnconnected struct {
	unconnected func(bluetooth []models.NearbyUser) []models.NearbyUser
}

func (a replaceUnconnected) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	s.UnconnectedUsers = a.unconnected(s.BluetoothUsers)
	return s
}

// replaceBluetooth installs a scan result as both the Bluetooth and the
// nearby set, and drops those users from unconnected.
type replaceBluetooth struct {
	users []models.NearbyUser
}

func (a replaceBluetooth) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	s.BluetoothUsers = cloneUsers(a.users)
	s.NearbyUsers = cloneUsers(a.users)
	s.UnconnectedUsers = without(s.UnconnectedUsers, a.users)
	return s
}

type clearBluetooth struct{}

func (clearBluetooth) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	s.BluetoothUsers = []models.NearbyUser{}
	s.NearbyUsers = []models.NearbyUser{}
	return s
}

// patchStatus is an optimistic update after a connect, accept or decline.
// A user who gains a status also leaves the unconnected list.
type patchStatus struct {
	userID uuid.UUID
	status models.ConnectionStatus
}

func (a patchStatus) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	nearby := cloneUsers(s.NearbyUsers)
	for i := range nearby {
		if nearby[i].ID == a.userID {
			nearby[i].ConnectionStatus = a.status
		}
	}
	s.NearbyUsers = nearby

	if a.status != "" {
		s.UnconnectedUsers = without(s.UnconnectedUsers, []models.NearbyUser{{ID: a.userID}})
	}
	return s
}

type setMessage string

func (a setMessage) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	s.Message = string(a)
	return s
}

type setBluetoothScanning bool

func (a setBluetoothScanning) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	s.BluetoothScanning = bool(a)
	return s
}

type setNFCScanning bool

func (a setNFCScanning) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	s.NFCScanning = bool(a)
	return s
}

type showAcknowledgement struct {
	ack models.Acknowledgement
}

func (a showAcknowledgement) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	ack := a.ack
	s.Acknowledgement = &ack
	return s
}

// clearAcknowledgement only clears the banner it was scheduled for.
type clearAcknowledgement struct {
	userID uuid.UUID
}

func (a clearAcknowledgement) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	if s.Acknowledgement != nil && s.Acknowledgement.UserID == a.userID {
		s.Acknowledgement = nil
	}
	return s
}

// batch applies several actions as one change.
type batch []action

func (b batch) apply(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	for _, a := range b {
		s = a.apply(s)
	}
	return s
}

func emptySnapshot() models.DiscoverySnapshot {
	return models.DiscoverySnapshot{
		BluetoothUsers:   []models.NearbyUser{},
		NearbyUsers:      []models.NearbyUser{},
		UnconnectedUsers: []models.NearbyUser{},
	}
}

// cloneSnapshot copies every slice so the result can be handed out.
func cloneSnapshot(s models.DiscoverySnapshot) models.DiscoverySnapshot {
	s.BluetoothUsers = cloneUsers(s.BluetoothUsers)
	s.NearbyUsers = cloneUsers(s.NearbyUsers)
	s.UnconnectedUsers = cloneUsers(s.UnconnectedUsers)
	if s.Acknowledgement != nil {
		ack := *s.Acknowledgement
		s.Acknowledgement = &ack
	}
	return s
}

func cloneUsers(users []models.NearbyUser) []models.NearbyUser {
	out := make([]models.NearbyUser, len(users))
	copy(out, users)
	return out
}

func without(users, drop []models.NearbyUser) []models.NearbyUser {
	ids := make(map[uuid.UUID]struct{}, len(drop))
	for _, u := range drop {
		ids[u.ID] = struct{}{}
	}

	out := make([]models.NearbyUser, 0, len(users))
	for _, u := range users {
		if _, ok := ids[u.ID]; !ok {
			out = append(out, u)
		}
	}
	return out
}
