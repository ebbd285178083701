package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Profile, error)
	ListExcept(ctx context.Context, id uuid.UUID) ([]*models.Profile, error)
	ListActiveSince(ctx context.Context, exclude uuid.UUID, since time.Time) ([]*models.Profile, error)
	UpdatePresence(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error
	MarkDiscoverable(ctx context.Context, id uuid.UUID, method models.DiscoveryMethod) error
}

// LinkRequest inserts From->To with Status and, when Reciprocal is set, the
// accepted To->From edge, together with Notification, in one transaction.
type LinkRequest struct {
	From         uuid.UUID
	To           uuid.UUID
	Status       models.ConnectionStatus
	Reciprocal   bool
	Notification *models.Notification
}

type ConnectionRepository interface {
	ExistsBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error)
	ListLinkedUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	Link(ctx context.Context, req LinkRequest) error
	Accept(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) error
	Decline(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) (bool, error)
	Unlink(ctx context.Context, userID, peerID uuid.UUID, notes []*models.Notification) error
	PromoteToProvider(ctx context.Context, userID uuid.UUID) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type MessageRepository interface {
	Send(ctx context.Context, msg *models.Message, note *models.Notification) error
	ListConversation(ctx context.Context, a, b uuid.UUID) ([]*models.Message, error)
}

type PostRepository interface {
	CountByType(ctx context.Context, userID uuid.UUID) (map[models.PostType]int, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

type PresenceRepository interface {
	SetPresence(ctx context.Context, presence *models.Presence) error
	GetPresence(ctx context.Context, userID uuid.UUID) (*models.Presence, error)
	DeletePresence(ctx context.Context, userID uuid.UUID) error
	GetBulkPresence(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error)
}
