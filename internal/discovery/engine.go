// Package discovery maintains a user's view of nearby and recently active
// people and runs the Bluetooth, NFC and connection flows behind it.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/device"
	"github.com/prudhvinik1/reallink/internal/logger"
	"github.com/prudhvinik1/reallink/internal/metrics"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Scope int

const (
	ScopeFull Scope = iota
	ScopeUnconnectedOnly
)

func (s Scope) String() string {
	if s == ScopeUnconnectedOnly {
		return "unconnected"
	}
	return "full"
}

type Profiles interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ListExcept(ctx context.Context, id uuid.UUID) ([]*models.Profile, error)
	ListActiveSince(ctx context.Context, exclude uuid.UUID, since time.Time) ([]*models.Profile, error)
}

type Connections interface {
	ExistsBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error)
	Link(ctx context.Context, req repositories.LinkRequest) error
	Accept(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) error
	Decline(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) (bool, error)
}

// PresenceWriter records presence for any user, not only the local one.
type PresenceWriter interface {
	WritePresence(ctx context.Context, userID uuid.UUID, status models.PresenceStatus, at time.Time) error
}

type Config struct {
	RefreshInterval   time.Duration
	NearbyWindow      time.Duration
	UnconnectedWindow time.Duration
	AckDuration       time.Duration
	// NFCConnectTimeout bounds a connect triggered by a tag reading.
	NFCConnectTimeout time.Duration
	// WriteBackConcurrency caps parallel presence writes after a scan.
	WriteBackConcurrency int
}

func DefaultConfig() Config {
	return Config{
		RefreshInterval:      15 * time.Second,
		NearbyWindow:         15 * time.Minute,
		UnconnectedWindow:    24 * time.Hour,
		AckDuration:          3 * time.Second,
		NFCConnectTimeout:    10 * time.Second,
		WriteBackConcurrency: 8,
	}
}

type Deps struct {
	Profiles    Profiles
	Connections Connections
	Presence    PresenceWriter
	Radio       device.Radio
	NFC         device.NFC
	Notifier    device.Notifier
	Changes     realtime.Subscriber
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

// Engine is one user's discovery screen. Every snapshot change goes through
// dispatch; results that arrive after Deactivate, or from an earlier
// activation, are dropped.
type Engine struct {
	userID  uuid.UUID
	cfg     Config
	deps    Deps
	log     *zap.Logger
	now     func() time.Time
	breaker *gobreaker.CircuitBreaker

	mu       sync.Mutex
	snap     models.DiscoverySnapshot
	active   bool
	epoch    uint64
	runCtx   context.Context
	cancel   context.CancelFunc
	sub      realtime.Subscription
	ackTimer *time.Timer
	watchers map[chan models.DiscoverySnapshot]struct{}

	wg sync.WaitGroup
}

func NewEngine(userID uuid.UUID, cfg Config, deps Deps) *Engine {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	def := DefaultConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.NearbyWindow <= 0 {
		cfg.NearbyWindow = def.NearbyWindow
	}
	if cfg.UnconnectedWindow <= 0 {
		cfg.UnconnectedWindow = def.UnconnectedWindow
	}
	if cfg.AckDuration <= 0 {
		cfg.AckDuration = def.AckDuration
	}
	if cfg.NFCConnectTimeout <= 0 {
		cfg.NFCConnectTimeout = def.NFCConnectTimeout
	}
	if cfg.WriteBackConcurrency <= 0 {
		cfg.WriteBackConcurrency = def.WriteBackConcurrency
	}

	log := deps.Log.Named("discovery").With(logger.UserID(userID))
	return &Engine{
		userID: userID,
		cfg:    cfg,
		deps:   deps,
		log:    log,
		now:    time.Now,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "discovery-fetch",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("discovery fetch breaker changed state",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		snap:     emptySnapshot(),
		watchers: make(map[chan models.DiscoverySnapshot]struct{}),
	}
}

func (e *Engine) UserID() uuid.UUID {
	return e.userID
}

// Activate mounts the discovery screen: it starts from an empty snapshot,
// refreshes in full, then refreshes every RefreshInterval and whenever
// another user's profile changes. Activating an active engine does nothing.
func (e *Engine) Activate(ctx context.Context) error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return nil
	}
	e.active = true
	e.epoch++
	epoch := e.epoch
	e.snap = emptySnapshot()
	runCtx, cancel := context.WithCancel(context.Background())
	e.runCtx = runCtx
	e.cancel = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	changed := make(chan struct{}, 1)
	if e.deps.Changes != nil {
		sub, err := e.deps.Changes.Subscribe(ctx, realtime.TableProfiles, realtime.ExceptUser(e.userID), func(realtime.ChangeEvent) {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		if err != nil {
			e.log.Warn("failed to subscribe to profile changes", zap.Error(err))
		} else {
			e.mu.Lock()
			if e.active && e.epoch == epoch {
				e.sub = sub
				sub = nil
			}
			e.mu.Unlock()
			if sub != nil {
				sub.Close()
			}
		}
	}

	e.backgroundRefresh(ctx, epoch, ScopeFull)

	go e.loop(runCtx, epoch, changed)

	e.log.Debug("discovery activated")
	return nil
}

// Deactivate unmounts the screen and ends any NFC reading session. Pending
// results of calls already in flight are discarded when they arrive.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	if e.deps.NFC != nil {
		e.deps.NFC.StopScan()
	}
	cancel := e.cancel
	sub := e.sub
	e.sub = nil
	if e.ackTimer != nil {
		e.ackTimer.Stop()
		e.ackTimer = nil
	}
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	if sub != nil {
		if err := sub.Close(); err != nil {
			e.log.Warn("failed to close profile subscription", zap.Error(err))
		}
	}
	e.log.Debug("discovery deactivated")
}

func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Snapshot returns a copy of the current view.
func (e *Engine) Snapshot() models.DiscoverySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSnapshot(e.snap)
}

// Watch delivers the latest snapshot after every change. A slow reader only
// ever sees the newest one. Call the returned func to stop watching.
func (e *Engine) Watch() (<-chan models.DiscoverySnapshot, func()) {
	ch := make(chan models.DiscoverySnapshot, 1)

	e.mu.Lock()
	e.watchers[ch] = struct{}{}
	ch <- cloneSnapshot(e.snap)
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.watchers, ch)
			e.mu.Unlock()
		})
	}
}

// Refresh is a user-initiated refresh. Backend failures other than
// transport failures are reported in the message area.
func (e *Engine) Refresh(ctx context.Context, scope Scope) error {
	epoch, ok := e.liveEpoch()
	if !ok {
		return ErrInactive
	}

	err := e.refresh(ctx, epoch, scope)
	if err != nil && !IsTransportFailure(err) {
		e.dispatch(epoch, setMessage(MsgScanError))
	}
	return err
}

// ScanBluetooth asks the phone for a device and, once one is picked,
// replaces the Bluetooth and nearby sets with everyone active within
// NearbyWindow, marking them online.
func (e *Engine) ScanBluetooth(ctx context.Context) error {
	epoch, ok := e.liveEpoch()
	if !ok {
		return ErrInactive
	}

	e.dispatch(epoch, batch{setMessage(""), setBluetoothScanning(true), clearBluetooth{}})
	defer e.dispatch(epoch, setBluetoothScanning(false))

	err := e.scanBluetooth(ctx, epoch)
	e.deps.Metrics.Scans.WithLabelValues(string(models.DiscoveryBluetooth), metrics.Result(err)).Inc()
	return err
}

func (e *Engine) scanBluetooth(ctx context.Context, epoch uint64) error {
	if e.deps.Radio == nil {
		e.dispatch(epoch, setMessage(MsgBluetoothUnsupported))
		return device.ErrUnsupported
	}

	if _, err := e.deps.Radio.RequestDevice(ctx); err != nil {
		e.dispatch(epoch, setMessage(bluetoothMessage(err)))
		return fmt.Errorf("failed to select device: %w", err)
	}

	since := e.now().Add(-e.cfg.NearbyWindow)
	profiles, err := e.deps.Profiles.ListActiveSince(ctx, e.userID, since)
	if err != nil {
		e.reportScanFailure(epoch, err)
		return fmt.Errorf("failed to fetch nearby users: %w", err)
	}
	if len(profiles) == 0 {
		e.dispatch(epoch, setMessage(MsgBluetoothNoUsers))
		return nil
	}

	at := e.now()
	users := forceOnline(profiles, at)
	e.dispatch(epoch, replaceBluetooth{users: users})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.WriteBackConcurrency)
	for _, u := range users {
		id := u.ID
		g.Go(func() error {
			return e.deps.Presence.WritePresence(gctx, id, models.StatusOnline, at)
		})
	}
	if err := g.Wait(); err != nil {
		e.reportScanFailure(epoch, err)
		return fmt.Errorf("failed to write back presence: %w", err)
	}

	if e.deps.Notifier != nil && e.deps.Notifier.NotificationPermission(ctx) == device.PermissionGranted {
		n := device.Notification{
			Title: scanNotificationTitle,
			Body:  fmt.Sprintf(scanNotificationBody, len(users)),
		}
		if err := e.deps.Notifier.Notify(ctx, n); err != nil {
			e.log.Debug("failed to raise scan notification", zap.Error(err))
		}
	}
	return nil
}

// ScanNFC opens a reading session. Every text record carrying another
// user's id links the two users immediately; the local id is then offered
// for writing so the other phone can read it back.
func (e *Engine) ScanNFC(ctx context.Context) error {
	epoch, ok := e.liveEpoch()
	if !ok {
		return ErrInactive
	}

	e.dispatch(epoch, batch{setMessage(""), setNFCScanning(true)})

	err := e.scanNFC(ctx, epoch)
	e.deps.Metrics.Scans.WithLabelValues(string(models.DiscoveryNFC), metrics.Result(err)).Inc()
	if err != nil {
		e.dispatch(epoch, batch{setMessage(nfcMessage(err)), setNFCScanning(false)})
	}
	return err
}

func (e *Engine) scanNFC(ctx context.Context, epoch uint64) error {
	if e.deps.NFC == nil {
		return device.ErrUnsupported
	}

	if err := e.deps.NFC.Scan(ctx, func(rec device.Record) { e.handleRecord(epoch, rec) }); err != nil {
		return fmt.Errorf("failed to start nfc scan: %w", err)
	}
	e.dispatch(epoch, setMessage(MsgNFCReady))

	own := device.Record{RecordType: device.RecordTypeText, Data: e.userID.String()}
	if err := e.deps.NFC.Write(ctx, own); err != nil {
		e.log.Warn("nfc write not supported", zap.Error(err))
	}
	return nil
}

// StopNFC ends the reading session opened by ScanNFC.
func (e *Engine) StopNFC() {
	if e.deps.NFC != nil {
		e.deps.NFC.StopScan()
	}
	if epoch, ok := e.liveEpoch(); ok {
		e.dispatch(epoch, setNFCScanning(false))
	}
}

func (e *Engine) handleRecord(epoch uint64, rec device.Record) {
	if rec.RecordType != device.RecordTypeText {
		return
	}
	peerID, err := uuid.Parse(strings.TrimSpace(rec.Data))
	if err != nil {
		e.log.Debug("ignoring nfc record", zap.Error(err))
		return
	}
	if peerID == e.userID {
		return
	}

	e.mu.Lock()
	live := e.active && e.epoch == epoch
	runCtx := e.runCtx
	e.mu.Unlock()
	if !live {
		return
	}

	ctx, cancel := context.WithTimeout(runCtx, e.cfg.NFCConnectTimeout)
	defer cancel()
	if err := e.Connect(ctx, peerID, true); err != nil {
		e.log.Debug("nfc connect failed", zap.String("peer_id", peerID.String()), zap.Error(err))
	}
}

// Connect links the local user to target. With autoAccept, used by NFC, both
// directions are accepted at once and the acknowledgement banner is shown;
// otherwise a pending request is sent.
func (e *Engine) Connect(ctx context.Context, target uuid.UUID, autoAccept bool) error {
	epoch, ok := e.liveEpoch()
	if !ok {
		return ErrInactive
	}
	e.dispatch(epoch, setMessage(""))

	err := e.connect(ctx, epoch, target, autoAccept)
	if err != nil {
		if !errors.Is(err, repositories.ErrConnectionExists) && !errors.Is(err, ErrSelfConnection) {
			e.log.Error("failed to connect", zap.String("peer_id", target.String()), zap.Error(err))
		}
		e.dispatch(epoch, setMessage(connectMessage(err)))
		return err
	}

	msg := MsgRequestSent
	if autoAccept {
		msg = MsgConnected
	}
	e.dispatch(epoch, setMessage(msg))
	return nil
}

func (e *Engine) connect(ctx context.Context, epoch uint64, target uuid.UUID, autoAccept bool) error {
	if target == e.userID {
		return ErrSelfConnection
	}

	exists, err := e.deps.Connections.ExistsBetween(ctx, e.userID, target)
	if err != nil {
		return err
	}
	if exists {
		return repositories.ErrConnectionExists
	}

	req := repositories.LinkRequest{
		From:   e.userID,
		To:     target,
		Status: models.ConnectionPending,
		Notification: &models.Notification{
			UserID:   target,
			SenderID: e.userID,
			Type:     models.NotificationConnectionRequest,
			Content:  NoteWantsToConnect,
		},
	}
	if autoAccept {
		req.Status = models.ConnectionAccepted
		req.Reciprocal = true
		req.Notification.Type = models.NotificationConnectionAccepted
		req.Notification.Content = NoteConnectedViaNFC
	}

	if err := e.deps.Connections.Link(ctx, req); err != nil {
		return err
	}

	if autoAccept {
		e.acknowledge(ctx, epoch, target)
	}
	e.dispatch(epoch, patchStatus{userID: target, status: req.Status})
	return nil
}

// acknowledge shows the connected banner for AckDuration.
func (e *Engine) acknowledge(ctx context.Context, epoch uint64, peerID uuid.UUID) {
	peer, err := e.deps.Profiles.GetByID(ctx, peerID)
	if err != nil {
		e.log.Debug("failed to load connected user", zap.Error(err))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.epoch != epoch {
		return
	}

	if e.ackTimer != nil {
		e.ackTimer.Stop()
	}
	e.applyLocked(showAcknowledgement{ack: models.Acknowledgement{
		UserID:    peer.ID,
		Username:  peer.Username,
		AvatarURL: peer.AvatarURL,
	}})
	e.ackTimer = time.AfterFunc(e.cfg.AckDuration, func() {
		e.dispatch(epoch, clearAcknowledgement{userID: peer.ID})
	})
}

// AcceptIncoming accepts peer's pending request.
func (e *Engine) AcceptIncoming(ctx context.Context, peer uuid.UUID) error {
	epoch, ok := e.liveEpoch()
	if !ok {
		return ErrInactive
	}
	e.dispatch(epoch, setMessage(""))

	note := &models.Notification{
		UserID:   peer,
		SenderID: e.userID,
		Type:     models.NotificationConnectionAccepted,
		Content:  NoteAccepted,
	}
	if err := e.deps.Connections.Accept(ctx, peer, e.userID, note); err != nil {
		e.log.Error("failed to accept connection", zap.String("peer_id", peer.String()), zap.Error(err))
		e.dispatch(epoch, setMessage(MsgAcceptFailed))
		return err
	}

	e.dispatch(epoch, batch{patchStatus{userID: peer, status: models.ConnectionAccepted}, setMessage(MsgAccepted)})
	return nil
}

// DeclineIncoming removes peer's pending request. When there is nothing to
// decline, for instance because it was already accepted, nothing changes.
func (e *Engine) DeclineIncoming(ctx context.Context, peer uuid.UUID) error {
	epoch, ok := e.liveEpoch()
	if !ok {
		return ErrInactive
	}

	note := &models.Notification{
		UserID:   peer,
		SenderID: e.userID,
		Type:     models.NotificationConnectionRequest,
		Content:  NoteDeclined,
	}
	removed, err := e.deps.Connections.Decline(ctx, peer, e.userID, note)
	if err != nil {
		e.log.Error("failed to decline connection", zap.String("peer_id", peer.String()), zap.Error(err))
		e.dispatch(epoch, setMessage(MsgDeclineFailed))
		return err
	}
	if !removed {
		e.log.Debug("no pending request to decline", zap.String("peer_id", peer.String()))
		return nil
	}

	e.dispatch(epoch, batch{patchStatus{userID: peer}, setMessage(MsgDeclined)})
	return nil
}

func (e *Engine) loop(ctx context.Context, epoch uint64, changed <-chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.backgroundRefresh(ctx, epoch, ScopeFull)
		case <-changed:
			e.backgroundRefresh(ctx, epoch, ScopeUnconnectedOnly)
		}
	}
}

func (e *Engine) backgroundRefresh(ctx context.Context, epoch uint64, scope Scope) {
	if err := e.refresh(ctx, epoch, scope); err != nil && ctx.Err() == nil {
		e.log.Error("discovery refresh failed", zap.String("scope", scope.String()), zap.Error(err))
	}
}

type fetchResult struct {
	profiles []*models.Profile
	statuses map[uuid.UUID]models.ConnectionStatus
}

func (e *Engine) refresh(ctx context.Context, epoch uint64, scope Scope) error {
	res, err := e.breaker.Execute(func() (interface{}, error) {
		return e.fetch(ctx)
	})
	e.deps.Metrics.DiscoveryRefreshes.WithLabelValues(scope.String(), metrics.Result(err)).Inc()
	if err != nil {
		return err
	}

	f := res.(*fetchResult)
	now := e.now()
	unconnected := func(bluetooth []models.NearbyUser) []models.NearbyUser {
		return Unconnected(f.profiles, f.statuses, bluetooth, now, e.cfg.UnconnectedWindow)
	}

	if scope == ScopeUnconnectedOnly {
		e.dispatch(epoch, replaceUnconnected{unconnected: unconnected})
	} else {
		e.dispatch(epoch, replaceFromFetch{statuses: f.statuses, unconnected: unconnected})
	}
	return nil
}

func (e *Engine) fetch(ctx context.Context) (*fetchResult, error) {
	profiles, err := e.deps.Profiles.ListExcept(ctx, e.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	outgoing, err := e.deps.Connections.ListOutgoing(ctx, e.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outgoing connections: %w", err)
	}
	incoming, err := e.deps.Connections.ListIncoming(ctx, e.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch incoming connections: %w", err)
	}
	return &fetchResult{profiles: profiles, statuses: DeriveStatuses(outgoing, incoming)}, nil
}

func (e *Engine) reportScanFailure(epoch uint64, err error) {
	e.log.Error("error scanning for users", zap.Error(err))
	if !IsTransportFailure(err) {
		e.dispatch(epoch, setMessage(MsgScanError))
	}
}

func (e *Engine) liveEpoch() (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch, e.active
}

// dispatch applies a to the snapshot if the activation that produced it is
// still live.
func (e *Engine) dispatch(epoch uint64, a action) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active || e.epoch != epoch {
		return
	}
	e.applyLocked(a)
}

func (e *Engine) applyLocked(a action) {
	e.snap = a.apply(e.snap)

	for ch := range e.watchers {
		snap := cloneSnapshot(e.snap)
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
