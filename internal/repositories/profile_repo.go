package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"go.uber.org/zap"
)

const profileColumns = `id, username, email, avatar_url, bio, occupation, location, website, status, last_seen, created_at`

type PostgresProfileRepository struct {
	pool    *pgxpool.Pool
	changes changeLog
}

func NewPostgresProfileRepository(pool *pgxpool.Pool, pub realtime.Publisher, log *zap.Logger) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool, changes: changeLog{pub: pub, log: log}}
}

func (r *PostgresProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := `INSERT INTO profiles (username, email, password_hash, avatar_url)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, status, last_seen, created_at`

	err := r.pool.QueryRow(ctx, query,
		profile.Username,
		profile.Email,
		profile.PasswordHash,
		profile.AvatarURL,
	).Scan(&profile.ID, &profile.Status, &profile.LastSeen, &profile.CreatedAt)

	if isUniqueViolation(err) {
		return ErrProfileExists
	}
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	r.changes.emit(ctx, realtime.TableProfiles, realtime.EventInsert, profile.ID, profile.ID)
	return nil
}

func (r *PostgresProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (r *PostgresProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + `, password_hash FROM profiles WHERE email = $1`

	var p models.Profile
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&p.ID, &p.Username, &p.Email, &p.AvatarURL, &p.Bio, &p.Occupation,
		&p.Location, &p.Website, &p.Status, &p.LastSeen, &p.CreatedAt,
		&p.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (r *PostgresProfileRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1) ORDER BY username ASC`
	return r.list(ctx, query, ids)
}

func (r *PostgresProfileRepository) ListExcept(ctx context.Context, id uuid.UUID) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id <> $1 ORDER BY last_seen DESC`
	return r.list(ctx, query, id)
}

// ListActiveSince backs get_nearby_users_with_status: every other profile
// whose last activity is at or after since.
func (r *PostgresProfileRepository) ListActiveSince(ctx context.Context, exclude uuid.UUID, since time.Time) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + `
	          FROM profiles
	          WHERE id <> $1 AND last_seen >= $2
	          ORDER BY last_seen DESC`
	return r.list(ctx, query, exclude, since)
}

func (r *PostgresProfileRepository) UpdatePresence(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error {
	query := `UPDATE profiles SET status = $1, last_seen = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, status, lastSeen, id)
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.changes.emit(ctx, realtime.TableProfiles, realtime.EventUpdate, id, id)
	return nil
}

// MarkDiscoverable backs update_nearby_users: it records that the user can
// currently be found through method.
func (r *PostgresProfileRepository) MarkDiscoverable(ctx context.Context, id uuid.UUID, method models.DiscoveryMethod) error {
	query := `INSERT INTO discoveries (user_id, method, discovered_at)
	          VALUES ($1, $2, NOW())
	          ON CONFLICT (user_id, method) DO UPDATE SET discovered_at = EXCLUDED.discovered_at`

	if _, err := r.pool.Exec(ctx, query, id, method); err != nil {
		return fmt.Errorf("failed to mark user discoverable: %w", err)
	}
	return nil
}

func (r *PostgresProfileRepository) list(ctx context.Context, query string, args ...any) ([]*models.Profile, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.AvatarURL,
		&p.Bio,
		&p.Occupation,
		&p.Location,
		&p.Website,
		&p.Status,
		&p.LastSeen,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
