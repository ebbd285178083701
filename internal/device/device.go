// Package device describes the proximity capabilities of the phone that owns
// a session: a Bluetooth radio, an NFC reader and local notifications. Each is
// optional and may be denied by the user.
package device

import (
	"context"
	"errors"
)

var (
	ErrUnsupported      = errors.New("capability not supported")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoDeviceSelected = errors.New("no device selected")
)

type PermissionState string

const (
	PermissionGranted     PermissionState = "granted"
	PermissionDenied      PermissionState = "denied"
	PermissionPrompt      PermissionState = "prompt"
	PermissionUnsupported PermissionState = "unsupported"
)

func (s PermissionState) Valid() bool {
	switch s {
	case PermissionGranted, PermissionDenied, PermissionPrompt, PermissionUnsupported:
		return true
	}
	return false
}

type Capability string

const (
	CapabilityBluetooth     Capability = "bluetooth"
	CapabilityNFC           Capability = "nfc"
	CapabilityNotifications Capability = "notifications"
)

func (c Capability) Valid() bool {
	switch c {
	case CapabilityBluetooth, CapabilityNFC, CapabilityNotifications:
		return true
	}
	return false
}

// Purpose says which Bluetooth prompt a device pick answers. A pick made
// for a user-started scan is never consumed by the background scan.
type Purpose string

const (
	PurposeScan       Purpose = "scan"
	PurposeBackground Purpose = "background"
)

func (p Purpose) Valid() bool {
	return p == PurposeScan || p == PurposeBackground
}

// Device is a peripheral picked in a Bluetooth device-selection prompt.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Radio is the Bluetooth device-selection surface.
type Radio interface {
	Permission(ctx context.Context) (PermissionState, error)
	// RequestDevice returns ErrNoDeviceSelected when the prompt was dismissed.
	RequestDevice(ctx context.Context) (Device, error)
}

const RecordTypeText = "text"

// Record is one NDEF record read from or written to a tag.
type Record struct {
	RecordType string `json:"record_type"`
	Data       string `json:"data"`
}

type NFC interface {
	// Scan starts a reading session. onRead is invoked for every record read
	// until the session is replaced or the device is released.
	Scan(ctx context.Context, onRead func(Record)) error
	// StopScan ends the reading session, if any.
	StopScan()
	Write(ctx context.Context, rec Record) error
}

// Notification is a local notification raised on the phone.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Notifier interface {
	NotificationPermission(ctx context.Context) PermissionState
	Notify(ctx context.Context, n Notification) error
}
