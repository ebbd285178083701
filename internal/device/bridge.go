package device

import (
	"context"
	"sync"
)

const (
	maxPendingSelections = 8
	maxOutbox            = 32
)

// Bridge is the server-side end of a phone's capabilities. The phone reports
// permission states, Bluetooth selections and NFC readings; the service reads
// them through Radio, NFC and Notifier and leaves NFC writes and local
// notifications for the phone to collect.
//
// Bluetooth selections are queued per Purpose. The Bridge itself answers
// user-started scans; Background answers the background scan.
//
// A capability the phone has never reported is unsupported.
type Bridge struct {
	mu            sync.Mutex
	permissions   map[Capability]PermissionState
	selections    map[Purpose][]Device
	onRead        func(Record)
	nfcOutbox     []Record
	notifications []Notification
}

func NewBridge() *Bridge {
	return &Bridge{
		permissions: make(map[Capability]PermissionState),
		selections:  make(map[Purpose][]Device),
	}
}

func (b *Bridge) SetPermission(c Capability, s PermissionState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.permissions[c] = s
	if c == CapabilityNFC && s != PermissionGranted {
		b.onRead = nil
	}
}

func (b *Bridge) Permissions() map[Capability]PermissionState {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[Capability]PermissionState, 3)
	for _, c := range []Capability{CapabilityBluetooth, CapabilityNFC, CapabilityNotifications} {
		out[c] = b.permissionLocked(c)
	}
	return out
}

// SelectDevice queues the device the user picked for a user-started scan.
func (b *Bridge) SelectDevice(d Device) {
	b.SelectDeviceFor(PurposeScan, d)
}

// SelectDeviceFor queues a pick for the prompt p. The oldest selection is
// dropped once the queue is full.
func (b *Bridge) SelectDeviceFor(p Purpose, d Device) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := append(b.selections[p], d)
	if len(q) > maxPendingSelections {
		q = q[len(q)-maxPendingSelections:]
	}
	b.selections[p] = q
}

func (b *Bridge) Permission(_ context.Context) (PermissionState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.permissionLocked(CapabilityBluetooth), nil
}

// RequestDevice takes the oldest pick made for a user-started scan.
func (b *Bridge) RequestDevice(_ context.Context) (Device, error) {
	return b.takeSelection(PurposeScan)
}

// Background is the Radio seen by the background scan.
func (b *Bridge) Background() Radio {
	return backgroundRadio{b: b}
}

type backgroundRadio struct {
	b *Bridge
}

func (r backgroundRadio) Permission(ctx context.Context) (PermissionState, error) {
	return r.b.Permission(ctx)
}

func (r backgroundRadio) RequestDevice(_ context.Context) (Device, error) {
	return r.b.takeSelection(PurposeBackground)
}

func (b *Bridge) takeSelection(p Purpose) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(CapabilityBluetooth); err != nil {
		return Device{}, err
	}
	q := b.selections[p]
	if len(q) == 0 {
		return Device{}, ErrNoDeviceSelected
	}
	b.selections[p] = q[1:]
	return q[0], nil
}

func (b *Bridge) Scan(_ context.Context, onRead func(Record)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(CapabilityNFC); err != nil {
		return err
	}
	b.onRead = onRead
	return nil
}

func (b *Bridge) Write(_ context.Context, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(CapabilityNFC); err != nil {
		return err
	}
	b.nfcOutbox = append(b.nfcOutbox, rec)
	if len(b.nfcOutbox) > maxOutbox {
		b.nfcOutbox = b.nfcOutbox[len(b.nfcOutbox)-maxOutbox:]
	}
	return nil
}

// Deliver hands records read by the phone to the active reading session. It
// reports false when no session is open.
func (b *Bridge) Deliver(records ...Record) bool {
	b.mu.Lock()
	onRead := b.onRead
	b.mu.Unlock()

	if onRead == nil {
		return false
	}
	for _, rec := range records {
		onRead(rec)
	}
	return true
}

func (b *Bridge) StopScan() {
	b.mu.Lock()
	b.onRead = nil
	b.mu.Unlock()
}

func (b *Bridge) NFCActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.onRead != nil
}

// DrainNFCOutbox returns and forgets the records waiting to be written.
func (b *Bridge) DrainNFCOutbox() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.nfcOutbox
	b.nfcOutbox = nil
	return out
}

func (b *Bridge) NotificationPermission(_ context.Context) PermissionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.permissionLocked(CapabilityNotifications)
}

func (b *Bridge) Notify(_ context.Context, n Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(CapabilityNotifications); err != nil {
		return err
	}
	b.notifications = append(b.notifications, n)
	if len(b.notifications) > maxOutbox {
		b.notifications = b.notifications[len(b.notifications)-maxOutbox:]
	}
	return nil
}

func (b *Bridge) DrainNotifications() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.notifications
	b.notifications = nil
	return out
}

// Release drops every pending selection, record and notification and ends
// the NFC session.
func (b *Bridge) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.selections = make(map[Purpose][]Device)
	b.onRead = nil
	b.nfcOutbox = nil
	b.notifications = nil
}

func (b *Bridge) permissionLocked(c Capability) PermissionState {
	s, ok := b.permissions[c]
	if !ok {
		return PermissionUnsupported
	}
	return s
}

// checkLocked maps a permission state to the error an operation on c fails
// with. A prompt state is allowed through: the phone asks the user itself.
func (b *Bridge) checkLocked(c Capability) error {
	switch b.permissionLocked(c) {
	case PermissionUnsupported:
		return ErrUnsupported
	case PermissionDenied:
		return ErrPermissionDenied
	}
	return nil
}
