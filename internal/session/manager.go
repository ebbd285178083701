// Package session owns the per-login components: the device bridge, the
// presence tracker and the discovery engine.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/device"
	"github.com/prudhvinik1/reallink/internal/discovery"
	"github.com/prudhvinik1/reallink/internal/metrics"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/presence"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound = errors.New("session not active")
	ErrClosed   = errors.New("session manager closed")
)

type Config struct {
	Presence  presence.Config
	Discovery discovery.Config
}

type Deps struct {
	Profiles    repositories.ProfileRepository
	Connections repositories.ConnectionRepository
	Presence    presence.Writer
	Changes     realtime.Subscriber
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

type Session struct {
	ID      string
	UserID  uuid.UUID
	Bridge  *device.Bridge
	Tracker *presence.Tracker
	Engine  *discovery.Engine

	endOnce sync.Once
	endErr  error
}

// end deactivates discovery before stopping the tracker so that the
// tracker's offline write is the session's last.
func (s *Session) end(ctx context.Context) error {
	s.endOnce.Do(func() {
		s.Engine.Deactivate()
		s.endErr = s.Tracker.Stop(ctx)
		s.Bridge.Release()
	})
	return s.endErr
}

type Manager struct {
	cfg  Config
	deps Deps
	log  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	// starting holds ids whose tracker is being started.
	starting map[string]struct{}
	closed   bool
}

func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Log.Named("session"),
		sessions: make(map[string]*Session),
		starting: make(map[string]struct{}),
	}
}

// Begin builds the session's components and starts its presence tracker.
// Beginning a session that is active or already starting does nothing.
func (m *Manager) Begin(ctx context.Context, sess *models.Session) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	_, active := m.sessions[sess.ID]
	_, starting := m.starting[sess.ID]
	if active || starting {
		m.mu.Unlock()
		return nil
	}
	m.starting[sess.ID] = struct{}{}
	m.mu.Unlock()

	s := m.build(sess)
	err := s.Tracker.Start(ctx)

	m.mu.Lock()
	delete(m.starting, sess.ID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if m.closed {
		m.mu.Unlock()
		if endErr := s.end(ctx); endErr != nil {
			m.log.Warn("failed to end session", zap.String("session_id", sess.ID), zap.Error(endErr))
		}
		return ErrClosed
	}
	m.sessions[sess.ID] = s
	m.mu.Unlock()

	m.deps.Metrics.ActiveSessions.Inc()
	m.log.Info("session begun",
		zap.String("session_id", sess.ID),
		zap.String("user_id", sess.UserID.String()),
	)
	return nil
}

func (m *Manager) build(sess *models.Session) *Session {
	bridge := device.NewBridge()
	log := m.deps.Log

	tracker := presence.NewTracker(sess.UserID, m.cfg.Presence, presence.Deps{
		Writer:       m.deps.Presence,
		Discoverable: m.deps.Profiles,
		Radio:        bridge.Background(),
		Changes:      m.deps.Changes,
		Metrics:      m.deps.Metrics,
		Log:          log,
	})

	engine := discovery.NewEngine(sess.UserID, m.cfg.Discovery, discovery.Deps{
		Profiles:    m.deps.Profiles,
		Connections: m.deps.Connections,
		Presence:    m.deps.Presence,
		Radio:       bridge,
		NFC:         bridge,
		Notifier:    bridge,
		Changes:     m.deps.Changes,
		Metrics:     m.deps.Metrics,
		Log:         log,
	})

	return &Session{
		ID:      sess.ID,
		UserID:  sess.UserID,
		Bridge:  bridge,
		Tracker: tracker,
		Engine:  engine,
	}
}

// End tears the session down once. Ending an unknown session does nothing.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	m.deps.Metrics.ActiveSessions.Dec()
	m.log.Info("session ended", zap.String("session_id", sessionID))
	return s.end(ctx)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown ends every session concurrently and refuses new ones.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			return m.End(ctx, id)
		})
	}
	return g.Wait()
}
