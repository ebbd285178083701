package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"go.uber.org/zap"
)

var ErrNotEligible = errors.New("not eligible for monetization")

const (
	MinLinks          = 1000
	MinPosts          = 30
	MinReels          = 10
	MinThreads        = 20
	MinAccountAgeDays = 90
)

const (
	MsgEligibilityFailed = "Failed to check eligibility status"
	MsgApplyFailed       = "Failed to submit application. Please try again."
	MsgApplySubmitted    = "Your application has been submitted successfully! We will review your application and get back to you soon."
)

type EligibilityStats struct {
	Links           int  `json:"links"`
	Posts           int  `json:"posts"`
	Reels           int  `json:"reels"`
	Threads         int  `json:"threads"`
	AccountAgeDays  int  `json:"account_age_days"`
	ProfileComplete bool `json:"profile_complete"`
	Eligible        bool `json:"eligible"`
}

type MonetizationService struct {
	profileRepo    repositories.ProfileRepository
	connectionRepo repositories.ConnectionRepository
	postRepo       repositories.PostRepository
	now            func() time.Time
	log            *zap.Logger
}

func NewMonetizationService(
	profileRepo repositories.ProfileRepository,
	connectionRepo repositories.ConnectionRepository,
	postRepo repositories.PostRepository,
	log *zap.Logger,
) *MonetizationService {
	return &MonetizationService{
		profileRepo:    profileRepo,
		connectionRepo: connectionRepo,
		postRepo:       postRepo,
		now:            time.Now,
		log:            log,
	}
}

func (s *MonetizationService) CheckEligibility(ctx context.Context, userID uuid.UUID) (*EligibilityStats, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	links, err := s.connectionRepo.ListLinkedUserIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}

	counts, err := s.postRepo.CountByType(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	stats := &EligibilityStats{
		Links:           len(links),
		Posts:           counts[models.PostTypePost],
		Reels:           counts[models.PostTypeReel],
		Threads:         counts[models.PostTypeThread],
		AccountAgeDays:  accountAgeDays(profile.CreatedAt, s.now()),
		ProfileComplete: profileComplete(profile),
	}
	stats.Eligible = stats.Links >= MinLinks &&
		stats.Posts >= MinPosts &&
		stats.Reels >= MinReels &&
		stats.Threads >= MinThreads &&
		stats.AccountAgeDays >= MinAccountAgeDays &&
		stats.ProfileComplete

	return stats, nil
}

// Apply promotes the user's outgoing accepted links to provider links.
func (s *MonetizationService) Apply(ctx context.Context, userID uuid.UUID) error {
	stats, err := s.CheckEligibility(ctx, userID)
	if err != nil {
		return err
	}
	if !stats.Eligible {
		return ErrNotEligible
	}

	promoted, err := s.connectionRepo.PromoteToProvider(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to apply for monetization: %w", err)
	}

	s.log.Info("monetization application submitted",
		zap.String("user_id", userID.String()),
		zap.Int64("promoted", promoted),
	)
	return nil
}

func accountAgeDays(createdAt, now time.Time) int {
	if createdAt.IsZero() || now.Before(createdAt) {
		return 0
	}
	return int(now.Sub(createdAt) / (24 * time.Hour))
}

func profileComplete(p *models.Profile) bool {
	for _, field := range []string{p.Bio, p.Occupation, p.Location, p.Website} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}
