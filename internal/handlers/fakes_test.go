package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"github.com/prudhvinik1/reallink/internal/services"
)

type fakeAuthenticator map[string]*services.TokenClaims

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (*services.TokenClaims, error) {
	claims, ok := f[token]
	if !ok {
		return nil, services.ErrInvalidToken
	}
	return claims, nil
}

type fakeAuthService struct{}

func (fakeAuthService) Register(context.Context, services.RegisterRequest) (*models.Profile, error) {
	return nil, services.ErrEmailExists
}

func (fakeAuthService) Login(context.Context, services.LoginRequest) (*services.LoginResponse, error) {
	return nil, services.ErrInvalidCredentials
}

func (fakeAuthService) Logout(context.Context, string) error { return nil }
func (fakeAuthService) LogoutAll(context.Context, string) error { return nil }

type memWriter struct {
	mu     sync.Mutex
	writes []models.PresenceStatus
}

func (w *memWriter) WritePresence(_ context.Context, _ uuid.UUID, status models.PresenceStatus, _ time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, status)
	return nil
}

func (w *memWriter) last() models.PresenceStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.writes) == 0 {
		return ""
	}
	return w.writes[len(w.writes)-1]
}

type memProfiles struct {
	active []*models.Profile
}

func (p *memProfiles) Create(context.Context, *models.Profile) error { return nil }
func (p *memProfiles) GetByID(context.Context, uuid.UUID) (*models.Profile, error) {
	return nil, repositories.ErrNotFound
}
func (p *memProfiles) GetByEmail(context.Context, string) (*models.Profile, error) {
	return nil, repositories.ErrNotFound
}
func (p *memProfiles) ListByIDs(context.Context, []uuid.UUID) ([]*models.Profile, error) {
	return nil, nil
}
func (p *memProfiles) ListExcept(context.Context, uuid.UUID) ([]*models.Profile, error) {
	return nil, nil
}
func (p *memProfiles) ListActiveSince(context.Context, uuid.UUID, time.Time) ([]*models.Profile, error) {
	return p.active, nil
}
func (p *memProfiles) UpdatePresence(context.Context, uuid.UUID, models.PresenceStatus, time.Time) error {
	return nil
}
func (p *memProfiles) MarkDiscoverable(context.Context, uuid.UUID, models.DiscoveryMethod) error {
	return nil
}

type memConnections struct{}

func (memConnections) ExistsBetween(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}
func (memConnections) ListOutgoing(context.Context, uuid.UUID) ([]*models.Connection, error) {
	return nil, nil
}
func (memConnections) ListIncoming(context.Context, uuid.UUID) ([]*models.Connection, error) {
	return nil, nil
}
func (memConnections) ListLinkedUserIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (memConnections) Link(context.Context, repositories.LinkRequest) error { return nil }
func (memConnections) Accept(context.Context, uuid.UUID, uuid.UUID, *models.Notification) error {
	return nil
}
func (memConnections) Decline(context.Context, uuid.UUID, uuid.UUID, *models.Notification) (bool, error) {
	return false, nil
}
func (memConnections) Unlink(context.Context, uuid.UUID, uuid.UUID, []*models.Notification) error {
	return nil
}
func (memConnections) PromoteToProvider(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

type fakeLinks struct {
	unlinkErr error
}

func (f *fakeLinks) ListLinks(context.Context, uuid.UUID) ([]*models.Profile, error) {
	return []*models.Profile{}, nil
}

func (f *fakeLinks) Unlink(context.Context, uuid.UUID, uuid.UUID) error {
	return f.unlinkErr
}

type fakeNotifications struct {
	responded []uuid.UUID
	accepted  bool
}

func (f *fakeNotifications) List(context.Context, uuid.UUID) ([]*models.Notification, error) {
	return []*models.Notification{}, nil
}

func (f *fakeNotifications) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (f *fakeNotifications) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeNotifications) RespondToRequest(_ context.Context, userID, notificationID, requesterID uuid.UUID, accept bool) error {
	f.responded = []uuid.UUID{userID, notificationID, requesterID}
	f.accepted = accept
	return nil
}

type fakeMessages struct{}

func (fakeMessages) Send(_ context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	return &models.Message{ID: uuid.New(), SenderID: senderID, ReceiverID: receiverID, Content: content}, nil
}

func (fakeMessages) ListConversation(context.Context, uuid.UUID, uuid.UUID) ([]*models.Message, error) {
	return []*models.Message{}, nil
}

type fakeMonetization struct {
	checkErr error
	applyErr error
}

func (f *fakeMonetization) CheckEligibility(context.Context, uuid.UUID) (*services.EligibilityStats, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &services.EligibilityStats{}, nil
}

func (f *fakeMonetization) Apply(context.Context, uuid.UUID) error {
	return f.applyErr
}

type fakePresence struct {
	statuses map[uuid.UUID]models.PresenceStatus
}

func (f *fakePresence) GetPresence(_ context.Context, userID uuid.UUID) (*models.Presence, error) {
	status, ok := f.statuses[userID]
	if !ok {
		status = models.StatusOffline
	}
	return &models.Presence{UserID: userID, Status: status}, nil
}

func (f *fakePresence) GetBulkPresence(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	out := make(map[uuid.UUID]models.Presence, len(userIDs))
	for _, id := range userIDs {
		p, _ := f.GetPresence(ctx, id)
		out[id] = *p
	}
	return out, nil
}
