package discovery

import (
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
)

// DeriveStatuses computes the display status of every peer the local user
// has a connection record with. An outgoing record wins over an incoming
// one; an incoming pending record shows as incoming and any other incoming
// status passes through.
func DeriveStatuses(outgoing, incoming []*models.Connection) map[uuid.UUID]models.ConnectionStatus {
	statuses := make(map[uuid.UUID]models.ConnectionStatus, len(outgoing)+len(incoming))

	for _, c := range incoming {
		status := c.Status
		if status == models.ConnectionPending {
			status = models.ConnectionIncoming
		}
		statuses[c.UserID] = status
	}
	for _, c := range outgoing {
		statuses[c.ConnectedUserID] = c.Status
	}
	return statuses
}

// Annotate returns a copy of users with ConnectionStatus taken from
// statuses. Users without a record get an empty status.
func Annotate(users []models.NearbyUser, statuses map[uuid.UUID]models.ConnectionStatus) []models.NearbyUser {
	out := make([]models.NearbyUser, len(users))
	for i, u := range users {
		u.ConnectionStatus = statuses[u.ID]
		out[i] = u
	}
	return out
}

// Unconnected selects the profiles seen strictly within window of now that
// have no connection record in either direction and are not in exclude.
// Each qualifying profile appears once.
func Unconnected(profiles []*models.Profile, statuses map[uuid.UUID]models.ConnectionStatus, exclude []models.NearbyUser, now time.Time, window time.Duration) []models.NearbyUser {
	excluded := make(map[uuid.UUID]struct{}, len(exclude))
	for _, u := range exclude {
		excluded[u.ID] = struct{}{}
	}

	cutoff := now.Add(-window)
	seen := make(map[uuid.UUID]struct{}, len(profiles))
	out := make([]models.NearbyUser, 0)

	for _, p := range profiles {
		if p == nil {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		if !p.LastSeen.After(cutoff) {
			continue
		}
		if _, ok := statuses[p.ID]; ok {
			continue
		}
		if _, ok := excluded[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, models.NearbyUserFromProfile(p))
	}
	return out
}

// forceOnline marks Bluetooth-discovered profiles online as of at.
func forceOnline(profiles []*models.Profile, at time.Time) []models.NearbyUser {
	out := make([]models.NearbyUser, 0, len(profiles))
	seen := make(map[uuid.UUID]struct{}, len(profiles))

	for _, p := range profiles {
		if p == nil {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}

		u := models.NearbyUserFromProfile(p)
		u.Status = models.StatusOnline
		u.LastSeen = at
		out = append(out, u)
	}
	return out
}
