package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/services"
	"go.uber.org/zap"
)

type AuthService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.Profile, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, token string) error
}

type AuthHandler struct {
	auth AuthService
	log  *zap.Logger
}

func NewAuthHandler(auth AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.auth.Register(r.Context(), services.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrEmailExists):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.log.Error("failed to register", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to register")
	default:
		writeData(w, http.StatusCreated, profile)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.auth.Login(r.Context(), services.LoginRequest{Email: req.Email, Password: req.Password})
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		h.log.Error("failed to login", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to login")
		return
	}

	writeData(w, http.StatusOK, loginResponse{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		UserID:    resp.UserID,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), tokenFrom(r.Context())); err != nil {
		h.log.Error("failed to logout", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to logout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.LogoutAll(r.Context(), tokenFrom(r.Context())); err != nil {
		h.log.Error("failed to logout all sessions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to logout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
