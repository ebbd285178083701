package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/services"
	"go.uber.org/zap"
)

type LinkService interface {
	ListLinks(ctx context.Context, userID uuid.UUID) ([]*models.Profile, error)
	Unlink(ctx context.Context, userID, peerID uuid.UUID) error
}

type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error
	RespondToRequest(ctx context.Context, userID, notificationID, requesterID uuid.UUID, accept bool) error
}

type MessageService interface {
	Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error)
	ListConversation(ctx context.Context, userID, peerID uuid.UUID) ([]*models.Message, error)
}

type MonetizationService interface {
	CheckEligibility(ctx context.Context, userID uuid.UUID) (*services.EligibilityStats, error)
	Apply(ctx context.Context, userID uuid.UUID) error
}

type SocialHandler struct {
	links         LinkService
	notifications NotificationService
	messages      MessageService
	monetization  MonetizationService
	log           *zap.Logger
}

func NewSocialHandler(
	links LinkService,
	notifications NotificationService,
	messages MessageService,
	monetization MonetizationService,
	log *zap.Logger,
) *SocialHandler {
	return &SocialHandler{
		links:         links,
		notifications: notifications,
		messages:      messages,
		monetization:  monetization,
		log:           log,
	}
}

// ListLinks lists the links of the user in the path, or of the caller when
// the path names "me".
func (h *SocialHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	userID := claimsFrom(r.Context()).UserID
	if id, ok := uuidParam(r, "userID"); ok {
		userID = id
	}

	links, err := h.links.ListLinks(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to list links", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load links")
		return
	}
	writeData(w, http.StatusOK, links)
}

func (h *SocialHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	peerID, ok := uuidParam(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	err := h.links.Unlink(r.Context(), claimsFrom(r.Context()).UserID, peerID)
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "You cannot unlink yourself")
	case errors.Is(err, services.ErrNotLinked):
		writeError(w, http.StatusNotFound, "You are not linked with this user")
	case err != nil:
		h.log.Error("failed to unlink", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to unlink")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *SocialHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.notifications.List(r.Context(), claimsFrom(r.Context()).UserID)
	if err != nil {
		h.log.Error("failed to list notifications", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load notifications")
		return
	}
	writeData(w, http.StatusOK, notifications)
}

func (h *SocialHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "notificationID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid notification id")
		return
	}
	h.notificationResult(w, h.notifications.MarkRead(r.Context(), claimsFrom(r.Context()).UserID, id))
}

func (h *SocialHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "notificationID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid notification id")
		return
	}
	h.notificationResult(w, h.notifications.Delete(r.Context(), claimsFrom(r.Context()).UserID, id))
}

type respondRequest struct {
	SenderID string `json:"sender_id"`
	Accept   bool   `json:"accept"`
}

func (h *SocialHandler) RespondToRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "notificationID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid notification id")
		return
	}
	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	senderID, ok := parseUUID(req.SenderID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid sender id")
		return
	}

	err := h.notifications.RespondToRequest(r.Context(), claimsFrom(r.Context()).UserID, id, senderID, req.Accept)
	h.notificationResult(w, err)
}

func (h *SocialHandler) notificationResult(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "Notification not found")
	case err != nil:
		h.log.Error("failed to update notification", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update notification")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *SocialHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	peerID, ok := uuidParam(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.messages.Send(r.Context(), claimsFrom(r.Context()).UserID, peerID, req.Content)
	if errors.Is(err, services.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	if err != nil {
		h.log.Error("failed to send message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}
	writeData(w, http.StatusCreated, msg)
}

func (h *SocialHandler) ListConversation(w http.ResponseWriter, r *http.Request) {
	peerID, ok := uuidParam(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	messages, err := h.messages.ListConversation(r.Context(), claimsFrom(r.Context()).UserID, peerID)
	if err != nil {
		h.log.Error("failed to list messages", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	writeData(w, http.StatusOK, messages)
}

func (h *SocialHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	stats, err := h.monetization.CheckEligibility(r.Context(), claimsFrom(r.Context()).UserID)
	if err != nil {
		h.log.Error("failed to check eligibility", zap.Error(err))
		writeError(w, http.StatusInternalServerError, services.MsgEligibilityFailed)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (h *SocialHandler) ApplyMonetization(w http.ResponseWriter, r *http.Request) {
	err := h.monetization.Apply(r.Context(), claimsFrom(r.Context()).UserID)
	if errors.Is(err, services.ErrNotEligible) {
		writeError(w, http.StatusForbidden, "You are not eligible for monetization yet")
		return
	}
	if err != nil {
		h.log.Error("failed to apply for monetization", zap.Error(err))
		writeError(w, http.StatusInternalServerError, services.MsgApplyFailed)
		return
	}
	writeMessage(w, services.MsgApplySubmitted)
}
