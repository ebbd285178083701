package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"github.com/prudhvinik1/reallink/internal/utils"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email or username already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid input")
)

// SessionLifecycle starts and stops the per-session components. End must be
// safe to call for a session that was never begun.
type SessionLifecycle interface {
	Begin(ctx context.Context, session *models.Session) error
	End(ctx context.Context, sessionID string) error
}

type AuthService struct {
	profileRepo repositories.ProfileRepository
	sessionRepo repositories.SessionRepository
	lifecycle   SessionLifecycle
	jwtSecret   string
	jwtExpiry   time.Duration
	log         *zap.Logger
}

type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResponse struct {
	Token     string
	ExpiresAt time.Time
	UserID    uuid.UUID
	SessionID string
}

type TokenClaims struct {
	UserID    uuid.UUID
	SessionID string
}

func NewAuthService(
	profileRepo repositories.ProfileRepository,
	sessionRepo repositories.SessionRepository,
	lifecycle SessionLifecycle,
	jwtSecret string,
	jwtExpiry time.Duration,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		lifecycle:   lifecycle,
		jwtSecret:   jwtSecret,
		jwtExpiry:   jwtExpiry,
		log:         log,
	}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.Profile, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidInput
	}

	// Check if email already exists
	existing, err := s.profileRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrEmailExists
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooShort) || errors.Is(err, utils.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	}
	err = s.profileRepo.Create(ctx, profile)
	if errors.Is(err, repositories.ErrProfileExists) {
		return nil, ErrEmailExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.log.Info("profile registered", zap.String("user_id", profile.ID.String()))
	return profile, nil
}

// Login checks the credentials, stores a session and begins its presence
// tracking.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	profile, err := s.profileRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if !utils.CheckPassword(profile.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    profile.ID,
		ExpiresAt: now.Add(s.jwtExpiry),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.lifecycle != nil {
		if err := s.lifecycle.Begin(ctx, session); err != nil {
			if delErr := s.sessionRepo.Delete(ctx, session.ID); delErr != nil {
				s.log.Warn("failed to remove session after begin failure", zap.Error(delErr))
			}
			return nil, fmt.Errorf("failed to begin session: %w", err)
		}
	}

	token, err := s.generateToken(profile.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		UserID:    profile.ID,
		SessionID: session.ID,
	}, nil
}

func (s *AuthService) generateToken(userID uuid.UUID, sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"jti": sessionID,
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userIDStr, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, ErrInvalidToken
	}

	sessionID, ok := claims["jti"].(string)
	if !ok || sessionID == "" {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		UserID:    userID,
		SessionID: sessionID,
	}, nil
}

// Authenticate verifies the token and that its session has not been logged
// out.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Logout ends the session's presence tracking, which writes the user
// offline, and deletes the session.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return err
	}

	s.end(ctx, claims.SessionID)

	err = s.sessionRepo.Delete(ctx, claims.SessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, tokenString string) error {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return err
	}

	sessions, err := s.sessionRepo.ListByUserID(ctx, claims.UserID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, session := range sessions {
		s.end(ctx, session.ID)
	}
	s.end(ctx, claims.SessionID)

	err = s.sessionRepo.DeleteAllForUser(ctx, claims.UserID)
	if err != nil {
		return fmt.Errorf("failed to logout all sessions: %w", err)
	}

	return nil
}

func (s *AuthService) end(ctx context.Context, sessionID string) {
	if s.lifecycle == nil {
		return
	}
	if err := s.lifecycle.End(ctx, sessionID); err != nil {
		s.log.Warn("failed to end session", zap.String("session_id", sessionID), zap.Error(err))
	}
}
