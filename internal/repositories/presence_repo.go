package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:"
	// Two missed 30 second refreshes and a user reads as offline.
	presenceTTL = 60 * time.Second
)

// RedisPresenceRepository caches the latest presence of every user. The
// profiles table stays the record of last_seen; this cache answers bulk
// "who is online" reads without touching Postgres.
type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

func (r *RedisPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	if presence.LastSeen.IsZero() {
		presence.LastSeen = time.Now()
	}

	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	// An offline write still refreshes the key so readers see the exact
	// moment the user left instead of a missing entry.
	if err := r.client.Set(ctx, presenceKey(presence.UserID), data, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) GetPresence(ctx context.Context, userID uuid.UUID) (*models.Presence, error) {
	data, err := r.client.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return offlinePresence(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var presence models.Presence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return &presence, nil
}

func (r *RedisPresenceRepository) DeletePresence(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	return nil
}

// GetBulkPresence reads many users in one round trip. Missing or unreadable
// entries count as offline.
func (r *RedisPresenceRepository) GetBulkPresence(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	presenceMap := make(map[uuid.UUID]models.Presence, len(userIDs))
	if len(userIDs) == 0 {
		return presenceMap, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	for i, result := range results {
		userID := userIDs[i]

		data, ok := result.(string)
		if !ok {
			presenceMap[userID] = *offlinePresence(userID)
			continue
		}

		var presence models.Presence
		if err := json.Unmarshal([]byte(data), &presence); err != nil {
			presenceMap[userID] = *offlinePresence(userID)
			continue
		}
		presenceMap[userID] = presence
	}

	return presenceMap, nil
}

func offlinePresence(userID uuid.UUID) *models.Presence {
	return &models.Presence{UserID: userID, Status: models.StatusOffline}
}

func presenceKey(userID uuid.UUID) string {
	return presenceKeyPrefix + userID.String()
}
