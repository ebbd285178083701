package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"go.uber.org/zap"
)

type PostgresNotificationRepository struct {
	pool    *pgxpool.Pool
	changes changeLog
}

func NewPostgresNotificationRepository(pool *pgxpool.Pool, pub realtime.Publisher, log *zap.Logger) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool, changes: changeLog{pub: pub, log: log}}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := insertNotification(ctx, r.pool, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	r.changes.emit(ctx, realtime.TableNotifications, realtime.EventInsert, n.ID, n.UserID)
	return nil
}

// ListForUser returns the recipient's notifications newest first, each with
// its sender's summary.
func (r *PostgresNotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	query := `SELECT n.id, n.user_id, n.sender_id, n.type, n.content, n.read, n.created_at,
	                 p.id, p.username, p.avatar_url
	          FROM notifications n
	          JOIN profiles p ON p.id = n.sender_id
	          WHERE n.user_id = $1
	          ORDER BY n.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var sender models.ProfileSummary
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.SenderID,
			&n.Type,
			&n.Content,
			&n.Read,
			&n.CreatedAt,
			&sender.ID,
			&sender.Username,
			&sender.AvatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Sender = &sender
		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.changes.emit(ctx, realtime.TableNotifications, realtime.EventUpdate, id, userID)
	return nil
}

func (r *PostgresNotificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.changes.emit(ctx, realtime.TableNotifications, realtime.EventDelete, id, userID)
	return nil
}

func insertNotification(ctx context.Context, q querier, n *models.Notification) error {
	query := `INSERT INTO notifications (user_id, sender_id, type, content, read)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, created_at`

	return q.QueryRow(ctx, query, n.UserID, n.SenderID, n.Type, n.Content, n.Read).Scan(&n.ID, &n.CreatedAt)
}
