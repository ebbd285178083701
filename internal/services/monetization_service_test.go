package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var monetizationNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestMonetizationService_CheckEligibility(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *models.Profile, links *int, counts map[models.PostType]int)
		eligible bool
	}{
		{
			name:     "all thresholds met",
			mutate:   func(*models.Profile, *int, map[models.PostType]int) {},
			eligible: true,
		},
		{
			name:   "one link short",
			mutate: func(_ *models.Profile, links *int, _ map[models.PostType]int) { *links = MinLinks - 1 },
		},
		{
			name:   "too few reels",
			mutate: func(_ *models.Profile, _ *int, c map[models.PostType]int) { c[models.PostTypeReel] = MinReels - 1 },
		},
		{
			name: "account one second short of 90 days",
			mutate: func(p *models.Profile, _ *int, _ map[models.PostType]int) {
				p.CreatedAt = monetizationNow.Add(-MinAccountAgeDays*24*time.Hour + time.Second)
			},
		},
		{
			name:   "missing website",
			mutate: func(p *models.Profile, _ *int, _ map[models.PostType]int) { p.Website = " " },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := completeProfile()
			links := MinLinks
			counts := map[models.PostType]int{
				models.PostTypePost:   MinPosts,
				models.PostTypeReel:   MinReels,
				models.PostTypeThread: MinThreads,
			}
			tt.mutate(profile, &links, counts)
			svc := newTestMonetizationService(profile, links, counts, nil)

			stats, err := svc.CheckEligibility(context.Background(), profile.ID)

			require.NoError(t, err)
			assert.Equal(t, tt.eligible, stats.Eligible)
		})
	}
}

func TestMonetizationService_Stats(t *testing.T) {
	profile := completeProfile()
	profile.CreatedAt = monetizationNow.Add(-100*24*time.Hour - time.Hour)
	counts := map[models.PostType]int{models.PostTypePost: 3, models.PostTypeThread: 2}
	svc := newTestMonetizationService(profile, 7, counts, nil)

	stats, err := svc.CheckEligibility(context.Background(), profile.ID)

	require.NoError(t, err)
	assert.Equal(t, EligibilityStats{
		Links:           7,
		Posts:           3,
		Reels:           0,
		Threads:         2,
		AccountAgeDays:  100,
		ProfileComplete: true,
		Eligible:        false,
	}, *stats)
}

func TestMonetizationService_ApplyRejectedWhenIneligible(t *testing.T) {
	profile := completeProfile()
	promoted := false
	svc := newTestMonetizationService(profile, 0, map[models.PostType]int{}, func() { promoted = true })

	err := svc.Apply(context.Background(), profile.ID)

	assert.ErrorIs(t, err, ErrNotEligible)
	assert.False(t, promoted)
}

func TestMonetizationService_ApplyPromotesLinks(t *testing.T) {
	profile := completeProfile()
	promoted := false
	counts := map[models.PostType]int{
		models.PostTypePost:   MinPosts,
		models.PostTypeReel:   MinReels,
		models.PostTypeThread: MinThreads,
	}
	svc := newTestMonetizationService(profile, MinLinks, counts, func() { promoted = true })

	err := svc.Apply(context.Background(), profile.ID)

	require.NoError(t, err)
	assert.True(t, promoted)
}

func completeProfile() *models.Profile {
	return &models.Profile{
		ID:         uuid.New(),
		Username:   "creator",
		Bio:        "bio",
		Occupation: "maker",
		Location:   "earth",
		Website:    "https://example.com",
		CreatedAt:  monetizationNow.Add(-MinAccountAgeDays * 24 * time.Hour),
	}
}

func newTestMonetizationService(profile *models.Profile, links int, counts map[models.PostType]int, onPromote func()) *MonetizationService {
	profiles := &fakeProfileRepo{
		getByIDFn: func(context.Context, uuid.UUID) (*models.Profile, error) { return profile, nil },
	}
	connections := &fakeConnectionRepo{
		listLinkedFn: func(context.Context, uuid.UUID) ([]uuid.UUID, error) {
			ids := make([]uuid.UUID, links)
			for i := range ids {
				ids[i] = uuid.New()
			}
			return ids, nil
		},
		promoteFn: func(context.Context, uuid.UUID) (int64, error) {
			if onPromote != nil {
				onPromote()
			}
			return int64(links), nil
		},
	}
	svc := NewMonetizationService(profiles, connections, &fakePostRepo{counts: counts}, zap.NewNop())
	svc.now = func() time.Time { return monetizationNow }
	return svc
}
