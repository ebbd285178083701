package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"go.uber.org/zap"
)

type PostgresMessageRepository struct {
	pool    *pgxpool.Pool
	changes changeLog
}

func NewPostgresMessageRepository(pool *pgxpool.Pool, pub realtime.Publisher, log *zap.Logger) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool, changes: changeLog{pub: pub, log: log}}
}

// Send stores msg and the receiver's notification together.
func (r *PostgresMessageRepository) Send(ctx context.Context, msg *models.Message, note *models.Notification) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO messages (sender_id, receiver_id, content)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			msg.SenderID, msg.ReceiverID, msg.Content,
		).Scan(&msg.ID, &msg.CreatedAt)
		if err != nil {
			return err
		}

		if note != nil {
			return insertNotification(ctx, tx, note)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	if note != nil {
		r.changes.emit(ctx, realtime.TableNotifications, realtime.EventInsert, note.ID, note.UserID)
	}
	return nil
}

func (r *PostgresMessageRepository) ListConversation(ctx context.Context, a, b uuid.UUID) ([]*models.Message, error) {
	query := `SELECT id, sender_id, receiver_id, content, created_at
	          FROM messages
	          WHERE (sender_id = $1 AND receiver_id = $2)
	             OR (sender_id = $2 AND receiver_id = $1)
	          ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}
