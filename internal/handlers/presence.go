package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"go.uber.org/zap"
)

const maxBulkPresence = 200

type PresenceReader interface {
	GetPresence(ctx context.Context, userID uuid.UUID) (*models.Presence, error)
	GetBulkPresence(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error)
}

type PresenceHandler struct {
	presence PresenceReader
	log      *zap.Logger
}

func NewPresenceHandler(presence PresenceReader, log *zap.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, log: log}
}

func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	p, err := h.presence.GetPresence(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to get presence", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load presence")
		return
	}
	writeData(w, http.StatusOK, p)
}

// Bulk reads the presence of the comma-separated ids in the query.
func (h *PresenceHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	raw := strings.Split(r.URL.Query().Get("ids"), ",")
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		id, ok := parseUUID(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid user id")
			return
		}
		ids = append(ids, id)
	}
	if len(ids) > maxBulkPresence {
		writeError(w, http.StatusBadRequest, "Too many user ids")
		return
	}

	presence, err := h.presence.GetBulkPresence(r.Context(), ids)
	if err != nil {
		h.log.Error("failed to get presence", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load presence")
		return
	}

	out := make([]models.Presence, 0, len(ids))
	for _, id := range ids {
		if p, ok := presence[id]; ok {
			out = append(out, p)
		}
	}
	writeData(w, http.StatusOK, out)
}
