package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/device"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_StartWritesOnlineImmediately(t *testing.T) {
	writer := &fakeWriter{}
	bus := realtime.NewLocal()
	tracker := newTestTracker(t, writer, nil, nil, bus, slowConfig())

	// ACT
	err := tracker.Start(context.Background())

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, []models.PresenceStatus{models.StatusOnline}, writer.statuses())
	assert.Equal(t, 1, bus.Subscribers())

	require.NoError(t, tracker.Stop(context.Background()))
}

func TestTracker_PresenceTicks(t *testing.T) {
	writer := &fakeWriter{}
	cfg := slowConfig()
	cfg.PresenceInterval = 5 * time.Millisecond
	tracker := newTestTracker(t, writer, nil, nil, nil, cfg)

	require.NoError(t, tracker.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return writer.count(models.StatusOnline) >= 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, tracker.Stop(context.Background()))
}

func TestTracker_StopWritesOfflineExactlyOnce(t *testing.T) {
	writer := &fakeWriter{}
	bus := realtime.NewLocal()
	tracker := newTestTracker(t, writer, nil, nil, bus, slowConfig())
	ctx := context.Background()
	require.NoError(t, tracker.Start(ctx))

	// ACT: logout, then a second teardown path
	require.NoError(t, tracker.Stop(ctx))
	require.NoError(t, tracker.Stop(ctx))

	// ASSERT
	statuses := writer.statuses()
	assert.Equal(t, 1, writer.count(models.StatusOffline))
	assert.Equal(t, models.StatusOffline, statuses[len(statuses)-1])
	assert.Equal(t, 0, bus.Subscribers())
}

// TestTracker_StopDuringInFlightWrite forces a tick's online write to block
// while Stop runs: the final offline write must come after it, exactly once.
func TestTracker_StopDuringInFlightWrite(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	writer := &fakeWriter{}
	var calls int
	writer.writeFn = func(_ context.Context, status models.PresenceStatus) error {
		calls++
		if calls == 2 && status == models.StatusOnline {
			close(entered)
			<-release
		}
		return nil
	}

	cfg := slowConfig()
	cfg.PresenceInterval = 5 * time.Millisecond
	tracker := newTestTracker(t, writer, nil, nil, nil, cfg)
	require.NoError(t, tracker.Start(context.Background()))

	<-entered

	stopped := make(chan error, 1)
	go func() {
		stopped <- tracker.Stop(context.Background())
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopped)

	assert.Equal(t, []models.PresenceStatus{
		models.StatusOnline,
		models.StatusOnline,
		models.StatusOffline,
	}, writer.statuses())
}

func TestTracker_LifecycleHooks(t *testing.T) {
	writer := &fakeWriter{}
	tracker := newTestTracker(t, writer, nil, nil, nil, slowConfig())
	ctx := context.Background()

	// Hooks are not registered before Start
	tracker.SetVisibility(ctx, false)
	tracker.Unload(ctx)
	assert.Empty(t, writer.statuses())

	require.NoError(t, tracker.Start(ctx))

	// ACT
	tracker.SetVisibility(ctx, false)
	tracker.SetVisibility(ctx, true)
	tracker.Unload(ctx)

	// ASSERT
	assert.Equal(t, []models.PresenceStatus{
		models.StatusOnline,
		models.StatusOffline,
		models.StatusOnline,
		models.StatusOffline,
	}, writer.statuses())

	require.NoError(t, tracker.Stop(ctx))
	before := len(writer.statuses())

	tracker.SetVisibility(ctx, true)
	tracker.Unload(ctx)

	assert.Len(t, writer.statuses(), before)
}

func TestTracker_StartStates(t *testing.T) {
	tracker := newTestTracker(t, &fakeWriter{}, nil, nil, nil, slowConfig())
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx))
	assert.ErrorIs(t, tracker.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, tracker.Stop(ctx))
	assert.ErrorIs(t, tracker.Start(ctx), ErrStopped)
}

func TestTracker_StopWithoutStartWritesNothing(t *testing.T) {
	writer := &fakeWriter{}
	tracker := newTestTracker(t, writer, nil, nil, nil, slowConfig())

	require.NoError(t, tracker.Stop(context.Background()))

	assert.Empty(t, writer.statuses())
}

func TestTracker_WriteFailureIsNotFatal(t *testing.T) {
	writer := &fakeWriter{
		writeFn: func(context.Context, models.PresenceStatus) error {
			return errors.New("connection refused")
		},
	}
	tracker := newTestTracker(t, writer, nil, nil, nil, slowConfig())

	require.NoError(t, tracker.Start(context.Background()))
	tracker.SetVisibility(context.Background(), true)

	err := tracker.Stop(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 1, writer.count(models.StatusOffline))
}

func TestTracker_BackgroundScan(t *testing.T) {
	tests := []struct {
		name       string
		permission device.PermissionState
		selectOne  bool
		wantMarked int
		wantLeft   bool
	}{
		{name: "granted with selection", permission: device.PermissionGranted, selectOne: true, wantMarked: 1},
		{name: "granted without selection", permission: device.PermissionGranted, wantMarked: 0},
		{name: "prompt leaves selection untouched", permission: device.PermissionPrompt, selectOne: true, wantMarked: 0, wantLeft: true},
		{name: "denied", permission: device.PermissionDenied, selectOne: true, wantMarked: 0, wantLeft: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := device.NewBridge()
			bridge.SetPermission(device.CapabilityBluetooth, tt.permission)
			if tt.selectOne {
				bridge.SelectDeviceFor(device.PurposeBackground, device.Device{ID: "peer-phone"})
			}
			discover := &fakeDiscoverable{}
			tracker := newTestTracker(t, &fakeWriter{}, discover, bridge.Background(), nil, slowConfig())

			// ACT: Stop waits for the initial scan to finish
			require.NoError(t, tracker.Start(context.Background()))
			require.NoError(t, tracker.Stop(context.Background()))

			// ASSERT
			assert.Equal(t, tt.wantMarked, discover.count())

			bridge.SetPermission(device.CapabilityBluetooth, device.PermissionGranted)
			_, err := bridge.Background().RequestDevice(context.Background())
			assert.Equal(t, tt.wantLeft, err == nil)
		})
	}
}

func TestTracker_ScanFailureIsSwallowed(t *testing.T) {
	bridge := device.NewBridge()
	bridge.SetPermission(device.CapabilityBluetooth, device.PermissionGranted)
	bridge.SelectDeviceFor(device.PurposeBackground, device.Device{ID: "peer-phone"})
	discover := &fakeDiscoverable{err: errors.New("rpc failed")}
	writer := &fakeWriter{}
	tracker := newTestTracker(t, writer, discover, bridge.Background(), nil, slowConfig())

	require.NoError(t, tracker.Start(context.Background()))
	require.NoError(t, tracker.Stop(context.Background()))

	assert.Equal(t, 1, discover.count())
	assert.Equal(t, []models.PresenceStatus{models.StatusOnline, models.StatusOffline}, writer.statuses())
}

func TestTracker_IgnoresOwnProfileChanges(t *testing.T) {
	bus := realtime.NewLocal()
	writer := &fakeWriter{}
	tracker := newTestTracker(t, writer, nil, nil, bus, slowConfig())
	ctx := context.Background()
	require.NoError(t, tracker.Start(ctx))

	// Change events are informational only
	require.NoError(t, bus.Publish(ctx, realtime.ChangeEvent{Table: realtime.TableProfiles, Type: realtime.EventUpdate, UserID: uuid.New()}))
	require.NoError(t, bus.Publish(ctx, realtime.ChangeEvent{Table: realtime.TableProfiles, Type: realtime.EventUpdate, UserID: tracker.UserID()}))

	assert.Equal(t, []models.PresenceStatus{models.StatusOnline}, writer.statuses())
	require.NoError(t, tracker.Stop(ctx))
}

// Helper functions and fakes

func slowConfig() Config {
	return Config{
		PresenceInterval: time.Hour,
		ScanInterval:     time.Hour,
		StopTimeout:      time.Second,
	}
}

func newTestTracker(t *testing.T, w Writer, d Discoverable, radio device.Radio, changes realtime.Subscriber, cfg Config) *Tracker {
	t.Helper()
	deps := Deps{Writer: w}
	if d != nil {
		deps.Discoverable = d
	}
	if radio != nil {
		deps.Radio = radio
	}
	if changes != nil {
		deps.Changes = changes
	}
	return NewTracker(uuid.New(), cfg, deps)
}

type fakeWriter struct {
	mu      sync.Mutex
	calls   []models.PresenceStatus
	writeFn func(context.Context, models.PresenceStatus) error
}

func (f *fakeWriter) WritePresence(ctx context.Context, _ uuid.UUID, status models.PresenceStatus, _ time.Time) error {
	f.mu.Lock()
	f.calls = append(f.calls, status)
	fn := f.writeFn
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, status)
}

func (f *fakeWriter) statuses() []models.PresenceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PresenceStatus(nil), f.calls...)
}

func (f *fakeWriter) count(status models.PresenceStatus) int {
	n := 0
	for _, s := range f.statuses() {
		if s == status {
			n++
		}
	}
	return n
}

type fakeDiscoverable struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeDiscoverable) MarkDiscoverable(context.Context, uuid.UUID, models.DiscoveryMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeDiscoverable) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
