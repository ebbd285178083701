package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/repositories"
)

type fakeProfileRepo struct {
	createFn         func(ctx context.Context, profile *models.Profile) error
	getByIDFn        func(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	getByEmailFn     func(ctx context.Context, email string) (*models.Profile, error)
	listByIDsFn      func(ctx context.Context, ids []uuid.UUID) ([]*models.Profile, error)
	updatePresenceFn func(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error
}

func (f *fakeProfileRepo) Create(ctx context.Context, profile *models.Profile) error {
	if f.createFn != nil {
		return f.createFn(ctx, profile)
	}
	profile.ID = uuid.New()
	return nil
}

func (f *fakeProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeProfileRepo) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeProfileRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Profile, error) {
	if f.listByIDsFn != nil {
		return f.listByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeProfileRepo) ListExcept(context.Context, uuid.UUID) ([]*models.Profile, error) {
	return nil, nil
}

func (f *fakeProfileRepo) ListActiveSince(context.Context, uuid.UUID, time.Time) ([]*models.Profile, error) {
	return nil, nil
}

func (f *fakeProfileRepo) UpdatePresence(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error {
	if f.updatePresenceFn != nil {
		return f.updatePresenceFn(ctx, id, status, lastSeen)
	}
	return nil
}

func (f *fakeProfileRepo) MarkDiscoverable(context.Context, uuid.UUID, models.DiscoveryMethod) error {
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.Session)}
}

func (f *fakeSessionRepo) Create(_ context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessionRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) DeleteAllForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionRepo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeLifecycle struct {
	beginFn func(ctx context.Context, session *models.Session) error
	mu      sync.Mutex
	begun   []string
	ended   []string
}

func (f *fakeLifecycle) Begin(ctx context.Context, session *models.Session) error {
	if f.beginFn != nil {
		if err := f.beginFn(ctx, session); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begun = append(f.begun, session.ID)
	return nil
}

func (f *fakeLifecycle) End(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
	return nil
}

type fakeConnectionRepo struct {
	listLinkedFn func(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	acceptFn     func(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) error
	declineFn    func(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) (bool, error)
	unlinkFn     func(ctx context.Context, userID, peerID uuid.UUID, notes []*models.Notification) error
	promoteFn    func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (f *fakeConnectionRepo) ExistsBetween(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeConnectionRepo) ListOutgoing(context.Context, uuid.UUID) ([]*models.Connection, error) {
	return nil, nil
}

func (f *fakeConnectionRepo) ListIncoming(context.Context, uuid.UUID) ([]*models.Connection, error) {
	return nil, nil
}

func (f *fakeConnectionRepo) ListLinkedUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if f.listLinkedFn != nil {
		return f.listLinkedFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeConnectionRepo) Link(context.Context, repositories.LinkRequest) error {
	return nil
}

func (f *fakeConnectionRepo) Accept(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) error {
	if f.acceptFn != nil {
		return f.acceptFn(ctx, requesterID, recipientID, note)
	}
	return nil
}

func (f *fakeConnectionRepo) Decline(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) (bool, error) {
	if f.declineFn != nil {
		return f.declineFn(ctx, requesterID, recipientID, note)
	}
	return true, nil
}

func (f *fakeConnectionRepo) Unlink(ctx context.Context, userID, peerID uuid.UUID, notes []*models.Notification) error {
	if f.unlinkFn != nil {
		return f.unlinkFn(ctx, userID, peerID, notes)
	}
	return nil
}

func (f *fakeConnectionRepo) PromoteToProvider(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.promoteFn != nil {
		return f.promoteFn(ctx, userID)
	}
	return 0, nil
}

type fakeNotificationRepo struct {
	listFn     func(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error)
	markReadFn func(ctx context.Context, id, userID uuid.UUID) error
	deleteFn   func(ctx context.Context, id, userID uuid.UUID) error
}

func (f *fakeNotificationRepo) Create(context.Context, *models.Notification) error {
	return nil
}

func (f *fakeNotificationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, id, userID)
	}
	return nil
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id, userID)
	}
	return nil
}

type fakeMessageRepo struct {
	sendFn func(ctx context.Context, msg *models.Message, note *models.Notification) error
	listFn func(ctx context.Context, a, b uuid.UUID) ([]*models.Message, error)
}

func (f *fakeMessageRepo) Send(ctx context.Context, msg *models.Message, note *models.Notification) error {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg, note)
	}
	return nil
}

func (f *fakeMessageRepo) ListConversation(ctx context.Context, a, b uuid.UUID) ([]*models.Message, error) {
	if f.listFn != nil {
		return f.listFn(ctx, a, b)
	}
	return nil, nil
}

type fakePostRepo struct {
	counts map[models.PostType]int
	err    error
}

func (f *fakePostRepo) CountByType(context.Context, uuid.UUID) (map[models.PostType]int, error) {
	return f.counts, f.err
}

type fakePresenceRepo struct {
	setFn func(ctx context.Context, presence *models.Presence) error
	mu    sync.Mutex
	set   []models.Presence
}

func (f *fakePresenceRepo) SetPresence(ctx context.Context, presence *models.Presence) error {
	if f.setFn != nil {
		if err := f.setFn(ctx, presence); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, *presence)
	return nil
}

func (f *fakePresenceRepo) GetPresence(_ context.Context, userID uuid.UUID) (*models.Presence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.set) - 1; i >= 0; i-- {
		if f.set[i].UserID == userID {
			p := f.set[i]
			return &p, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakePresenceRepo) DeletePresence(context.Context, uuid.UUID) error {
	return nil
}

func (f *fakePresenceRepo) GetBulkPresence(context.Context, []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	return map[uuid.UUID]models.Presence{}, nil
}
