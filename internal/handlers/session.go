package handlers

import (
	"errors"
	"net/http"

	"github.com/prudhvinik1/reallink/internal/device"
	"github.com/prudhvinik1/reallink/internal/discovery"
	"github.com/prudhvinik1/reallink/internal/session"
	"go.uber.org/zap"
)

type Sessions interface {
	Get(sessionID string) (*session.Session, error)
}

// SessionHandler serves the endpoints bound to the caller's login session:
// presence lifecycle, device reports and the discovery screen.
type SessionHandler struct {
	sessions Sessions
	log      *zap.Logger
}

func NewSessionHandler(sessions Sessions, log *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, log: log}
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	s, err := h.sessions.Get(claims.SessionID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Session is not active")
		return nil, false
	}
	return s, true
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

func (h *SessionHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.Tracker.SetVisibility(r.Context(), req.Visible)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Unload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Tracker.Unload(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, s.Bridge.Permissions())
}

type permissionRequest struct {
	Capability device.Capability      `json:"capability"`
	State      device.PermissionState `json:"state"`
}

func (h *SessionHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req permissionRequest
	if err := decodeJSON(r, &req); err != nil || !req.Capability.Valid() || !req.State.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid permission report")
		return
	}
	s.Bridge.SetPermission(req.Capability, req.State)
	writeData(w, http.StatusOK, s.Bridge.Permissions())
}

type selectDeviceRequest struct {
	device.Device
	// Purpose defaults to a user-started scan.
	Purpose device.Purpose `json:"purpose"`
}

func (h *SessionHandler) SelectDevice(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectDeviceRequest
	if err := decodeJSON(r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "Invalid device")
		return
	}
	if req.Purpose == "" {
		req.Purpose = device.PurposeScan
	}
	if !req.Purpose.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid device")
		return
	}
	s.Bridge.SelectDeviceFor(req.Purpose, req.Device)
	w.WriteHeader(http.StatusAccepted)
}

type readingsRequest struct {
	Records []device.Record `json:"records"`
}

// DeliverReadings passes NFC records read by the phone to the open reading
// session and returns the resulting discovery state.
func (h *SessionHandler) DeliverReadings(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req readingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !s.Bridge.Deliver(req.Records...) {
		writeError(w, http.StatusConflict, "No NFC scan in progress")
		return
	}
	writeData(w, http.StatusOK, s.Engine.Snapshot())
}

func (h *SessionHandler) StopNFC(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Engine.StopNFC()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) NFCOutbox(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	records := s.Bridge.DrainNFCOutbox()
	if records == nil {
		records = []device.Record{}
	}
	writeData(w, http.StatusOK, records)
}

func (h *SessionHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	notes := s.Bridge.DrainNotifications()
	if notes == nil {
		notes = []device.Notification{}
	}
	writeData(w, http.StatusOK, notes)
}

func (h *SessionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Engine.Activate(r.Context()); err != nil {
		h.log.Error("failed to activate discovery", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start discovery")
		return
	}
	writeData(w, http.StatusOK, s.Engine.Snapshot())
}

func (h *SessionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Engine.Deactivate()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, s.Engine.Snapshot())
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	scope := discovery.ScopeFull
	switch r.URL.Query().Get("scope") {
	case "", "full":
	case "unconnected":
		scope = discovery.ScopeUnconnectedOnly
	default:
		writeError(w, http.StatusBadRequest, "Invalid scope")
		return
	}
	h.discoveryResult(w, s, s.Engine.Refresh(r.Context(), scope))
}

func (h *SessionHandler) ScanBluetooth(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.discoveryResult(w, s, s.Engine.ScanBluetooth(r.Context()))
}

func (h *SessionHandler) ScanNFC(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.discoveryResult(w, s, s.Engine.ScanNFC(r.Context()))
}

type connectRequest struct {
	UserID string `json:"user_id"`
}

func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req connectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	target, ok := parseUUID(req.UserID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	h.discoveryResult(w, s, s.Engine.Connect(r.Context(), target, false))
}

func (h *SessionHandler) AcceptIncoming(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	peer, ok := uuidParam(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	h.discoveryResult(w, s, s.Engine.AcceptIncoming(r.Context(), peer))
}

func (h *SessionHandler) DeclineIncoming(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	peer, ok := uuidParam(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	h.discoveryResult(w, s, s.Engine.DeclineIncoming(r.Context(), peer))
}

// discoveryResult answers with the snapshot. User-facing failures carry the
// snapshot's message; transport failures are reported as unavailable.
func (h *SessionHandler) discoveryResult(w http.ResponseWriter, s *session.Session, err error) {
	if errors.Is(err, discovery.ErrInactive) {
		writeError(w, http.StatusConflict, "Discovery is not active")
		return
	}

	snap := s.Engine.Snapshot()
	switch {
	case err == nil:
		writeData(w, http.StatusOK, snap)
	case discovery.IsTransportFailure(err):
		h.log.Warn("discovery backend unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, envelope{Data: snap, Error: "Service temporarily unavailable"})
	default:
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Data: snap, Error: snap.Message})
	}
}
