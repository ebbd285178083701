package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/reallink/internal/models"
)

type PostgresPostRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPostRepository(pool *pgxpool.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool}
}

func (r *PostgresPostRepository) CountByType(ctx context.Context, userID uuid.UUID) (map[models.PostType]int, error) {
	query := `SELECT type, COUNT(*) FROM posts WHERE user_id = $1 GROUP BY type`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.PostType]int)
	for rows.Next() {
		var postType models.PostType
		var n int
		if err := rows.Scan(&postType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan post count: %w", err)
		}
		counts[postType] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post counts: %w", err)
	}

	return counts, nil
}
