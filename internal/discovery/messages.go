package discovery

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prudhvinik1/reallink/internal/device"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"github.com/sony/gobreaker"
)

var (
	ErrInactive       = errors.New("discovery is not active")
	ErrSelfConnection = errors.New("cannot connect with yourself")
)

// Messages shown in the discovery screen's message area.
const (
	MsgScanError            = "Error scanning for users. Please try again."
	MsgBluetoothUnsupported = "Bluetooth is not supported. Please make sure Bluetooth is enabled on your device."
	MsgBluetoothNoDevice    = "No Bluetooth devices found. Please make sure Bluetooth is enabled."
	MsgBluetoothDenied      = "Bluetooth permission denied. Please allow Bluetooth access."
	MsgBluetoothNoUsers     = "No nearby users found via Bluetooth"
	MsgNFCUnsupported       = "NFC is not supported on this device"
	MsgNFCDenied            = "NFC permission denied. Please enable NFC access."
	MsgNFCReady             = "Tap your phone against another device to connect"
	MsgNFCError             = "Failed to start NFC scan. Please try again."
	MsgConnected            = "Connected successfully!"
	MsgRequestSent          = "Connection request sent!"
	MsgConnectionExists     = "A connection already exists with this user"
	MsgSelfConnection       = "You cannot connect with yourself"
	MsgConnectFailed        = "Failed to send connection request"
	MsgAccepted             = "Connection accepted!"
	MsgAcceptFailed         = "Failed to accept connection request"
	MsgDeclined             = "Request declined"
	MsgDeclineFailed        = "Failed to decline connection request"
)

// Notification texts stored for the other user.
const (
	NoteConnectedViaNFC = "connected with you via NFC"
	NoteWantsToConnect  = "wants to connect with you"
	NoteAccepted        = "accepted your connection request"
	NoteDeclined        = "declined your connection request"
)

const (
	scanNotificationTitle = "Users Found!"
	scanNotificationBody  = "Found %d nearby users via Bluetooth"
)

func bluetoothMessage(err error) string {
	switch {
	case errors.Is(err, device.ErrUnsupported):
		return MsgBluetoothUnsupported
	case errors.Is(err, device.ErrNoDeviceSelected):
		return MsgBluetoothNoDevice
	case errors.Is(err, device.ErrPermissionDenied):
		return MsgBluetoothDenied
	}
	return MsgScanError
}

func nfcMessage(err error) string {
	switch {
	case errors.Is(err, device.ErrUnsupported):
		return MsgNFCUnsupported
	case errors.Is(err, device.ErrPermissionDenied):
		return MsgNFCDenied
	}
	return MsgNFCError
}

func connectMessage(err error) string {
	switch {
	case errors.Is(err, repositories.ErrConnectionExists):
		return MsgConnectionExists
	case errors.Is(err, ErrSelfConnection):
		return MsgSelfConnection
	}
	return MsgConnectFailed
}

// IsTransportFailure reports whether err means the backend could not be
// reached at all. Such failures are logged but never shown.
func IsTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
