// Package presence keeps a signed-in user's online status fresh for the
// lifetime of their session and opportunistically makes them discoverable
// over Bluetooth.
package presence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/device"
	"github.com/prudhvinik1/reallink/internal/logger"
	"github.com/prudhvinik1/reallink/internal/metrics"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("presence tracker already started")
	ErrStopped        = errors.New("presence tracker stopped")
)

// Writer persists a user's presence.
type Writer interface {
	WritePresence(ctx context.Context, userID uuid.UUID, status models.PresenceStatus, at time.Time) error
}

// Discoverable backs update_nearby_users.
type Discoverable interface {
	MarkDiscoverable(ctx context.Context, id uuid.UUID, method models.DiscoveryMethod) error
}

type Config struct {
	PresenceInterval time.Duration
	ScanInterval     time.Duration
	// StopTimeout bounds the final offline write.
	StopTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PresenceInterval: 30 * time.Second,
		ScanInterval:     60 * time.Second,
		StopTimeout:      5 * time.Second,
	}
}

type Deps struct {
	Writer       Writer
	Discoverable Discoverable
	Radio        device.Radio
	Changes      realtime.Subscriber
	Metrics      *metrics.Metrics
	Log          *zap.Logger
}

// Tracker is one session's presence loop. Start it once; Stop it once. Stop
// always ends with exactly one offline write, issued after every other write
// of this tracker has returned.
type Tracker struct {
	userID uuid.UUID
	cfg    Config
	deps   Deps
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	sub     realtime.Subscription
	wg      sync.WaitGroup

	stopped  atomic.Bool
	stopOnce sync.Once
	stopErr  error

	// writeMu orders writes so the final offline write lands last.
	writeMu sync.Mutex
}

func NewTracker(userID uuid.UUID, cfg Config, deps Deps) *Tracker {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	def := DefaultConfig()
	if cfg.PresenceInterval <= 0 {
		cfg.PresenceInterval = def.PresenceInterval
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = def.ScanInterval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	return &Tracker{
		userID: userID,
		cfg:    cfg,
		deps:   deps,
		log:    deps.Log.Named("presence").With(logger.UserID(userID)),
		now:    time.Now,
	}
}

func (t *Tracker) UserID() uuid.UUID {
	return t.userID
}

// Start writes the user online, kicks off a background device scan, starts
// the presence and scan tickers and subscribes to other users' profile
// changes. ctx only bounds the initial write and subscription.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped.Load() {
		return ErrStopped
	}
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	t.write(ctx, models.StatusOnline, false)

	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	if t.deps.Changes != nil {
		sub, err := t.deps.Changes.Subscribe(ctx, realtime.TableProfiles, realtime.ExceptUser(t.userID), func(ev realtime.ChangeEvent) {
			t.log.Debug("presence change observed",
				zap.String("type", string(ev.Type)),
				zap.String("peer_id", ev.UserID.String()),
			)
		})
		if err != nil {
			t.log.Warn("failed to subscribe to profile changes", zap.Error(err))
		} else {
			t.sub = sub
		}
	}

	t.wg.Add(3)
	go func() {
		defer t.wg.Done()
		t.scan(runCtx)
	}()
	go t.every(runCtx, t.cfg.PresenceInterval, func(ctx context.Context) {
		t.write(ctx, models.StatusOnline, false)
	})
	go t.every(runCtx, t.cfg.ScanInterval, t.scan)

	t.log.Info("presence tracker started")
	return nil
}

// SetVisibility writes online when the app becomes visible and offline when
// it is hidden. It does nothing before Start or after Stop.
func (t *Tracker) SetVisibility(ctx context.Context, visible bool) {
	if !t.active() {
		return
	}
	status := models.StatusOffline
	if visible {
		status = models.StatusOnline
	}
	t.write(ctx, status, false)
}

// Unload writes offline when the app is being closed without a logout.
func (t *Tracker) Unload(ctx context.Context) {
	if !t.active() {
		return
	}
	t.write(ctx, models.StatusOffline, false)
}

// Stop cancels the tickers, waits for in-flight work, closes the
// subscription and writes the user offline. Only the first call acts; later
// calls return its result.
func (t *Tracker) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() {
		t.stopped.Store(true)

		t.mu.Lock()
		started := t.started
		cancel := t.cancel
		sub := t.sub
		t.mu.Unlock()

		if !started {
			return
		}

		if cancel != nil {
			cancel()
		}
		t.wg.Wait()

		if sub != nil {
			if err := sub.Close(); err != nil {
				t.log.Warn("failed to close profile subscription", zap.Error(err))
			}
		}

		stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.StopTimeout)
		defer stopCancel()
		t.stopErr = t.write(stopCtx, models.StatusOffline, true)

		t.log.Info("presence tracker stopped")
	})
	return t.stopErr
}

func (t *Tracker) active() bool {
	if t.stopped.Load() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// write records status. Unless final, it is dropped once Stop has begun.
// Failures are logged and left for the next tick.
func (t *Tracker) write(ctx context.Context, status models.PresenceStatus, final bool) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if !final && t.stopped.Load() {
		return nil
	}

	err := t.deps.Writer.WritePresence(ctx, t.userID, status, t.now())
	t.deps.Metrics.PresenceWrites.WithLabelValues(string(status), metrics.Result(err)).Inc()
	if err != nil && ctx.Err() == nil {
		t.log.Error("failed to write presence", zap.String("status", string(status)), zap.Error(err))
	}
	return err
}

// scan is the background Bluetooth attempt. It only proceeds when permission
// is already granted, and every failure is expected and swallowed.
func (t *Tracker) scan(ctx context.Context) {
	if t.deps.Radio == nil || t.deps.Discoverable == nil {
		return
	}

	state, err := t.deps.Radio.Permission(ctx)
	if err != nil {
		t.log.Debug("background bluetooth scan", zap.Error(err))
		return
	}
	if state != device.PermissionGranted {
		return
	}

	if _, err := t.deps.Radio.RequestDevice(ctx); err != nil {
		t.log.Debug("background bluetooth scan", zap.Error(err))
		return
	}

	err = t.deps.Discoverable.MarkDiscoverable(ctx, t.userID, models.DiscoveryBluetooth)
	t.deps.Metrics.Scans.WithLabelValues("bluetooth_background", metrics.Result(err)).Inc()
	if err != nil {
		t.log.Debug("background bluetooth scan", zap.Error(err))
	}
}

func (t *Tracker) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
