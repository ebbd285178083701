package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"go.uber.org/zap"
)

const connectionColumns = `id, user_id, connected_user_id, status, created_at`

type PostgresConnectionRepository struct {
	pool    *pgxpool.Pool
	changes changeLog
}

func NewPostgresConnectionRepository(pool *pgxpool.Pool, pub realtime.Publisher, log *zap.Logger) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{pool: pool, changes: changeLog{pub: pub, log: log}}
}

func (r *PostgresConnectionRepository) ExistsBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (
	              SELECT 1 FROM connections
	              WHERE (user_id = $1 AND connected_user_id = $2)
	                 OR (user_id = $2 AND connected_user_id = $1)
	          )`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, a, b).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check connection: %w", err)
	}
	return exists, nil
}

func (r *PostgresConnectionRepository) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1`
	return r.list(ctx, query, userID)
}

func (r *PostgresConnectionRepository) ListIncoming(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE connected_user_id = $1`
	return r.list(ctx, query, userID)
}

// ListLinkedUserIDs returns every user holding an accepted edge with userID in
// either direction, each once.
func (r *PostgresConnectionRepository) ListLinkedUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT connected_user_id FROM connections WHERE user_id = $1 AND status = 'accepted'
	          UNION
	          SELECT user_id FROM connections WHERE connected_user_id = $1 AND status = 'accepted'`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to collect links: %w", err)
	}
	return ids, nil
}

func (r *PostgresConnectionRepository) Link(ctx context.Context, req LinkRequest) error {
	var created []*models.Connection

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		forward := &models.Connection{UserID: req.From, ConnectedUserID: req.To, Status: req.Status}
		if err := insertConnection(ctx, tx, forward); err != nil {
			return err
		}
		created = append(created, forward)

		if req.Reciprocal {
			back := &models.Connection{UserID: req.To, ConnectedUserID: req.From, Status: models.ConnectionAccepted}
			if err := insertConnection(ctx, tx, back); err != nil {
				return err
			}
			created = append(created, back)
		}

		if req.Notification != nil {
			return insertNotification(ctx, tx, req.Notification)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return ErrConnectionExists
	}
	if err != nil {
		return fmt.Errorf("failed to link users: %w", err)
	}

	for _, c := range created {
		r.changes.emit(ctx, realtime.TableConnections, realtime.EventInsert, c.ID, c.UserID)
	}
	if req.Notification != nil {
		r.changes.emit(ctx, realtime.TableNotifications, realtime.EventInsert, req.Notification.ID, req.Notification.UserID)
	}
	return nil
}

// Accept turns the pending requester->recipient edge into an accepted link.
// It returns ErrNotFound when no pending request exists.
func (r *PostgresConnectionRepository) Accept(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) error {
	var back models.Connection

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`UPDATE connections SET status = 'accepted'
			 WHERE user_id = $1 AND connected_user_id = $2 AND status = 'pending'`,
			requesterID, recipientID,
		)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}

		// A crossed pending request in the other direction is upgraded
		// rather than duplicated.
		err = tx.QueryRow(ctx,
			`INSERT INTO connections (user_id, connected_user_id, status)
			 VALUES ($1, $2, 'accepted')
			 ON CONFLICT (user_id, connected_user_id) DO UPDATE SET status = 'accepted'
			 RETURNING `+connectionColumns,
			recipientID, requesterID,
		).Scan(&back.ID, &back.UserID, &back.ConnectedUserID, &back.Status, &back.CreatedAt)
		if err != nil {
			return err
		}

		if note != nil {
			return insertNotification(ctx, tx, note)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to accept connection: %w", err)
	}

	r.changes.emit(ctx, realtime.TableConnections, realtime.EventUpdate, uuid.Nil, requesterID)
	r.changes.emit(ctx, realtime.TableConnections, realtime.EventInsert, back.ID, back.UserID)
	if note != nil {
		r.changes.emit(ctx, realtime.TableNotifications, realtime.EventInsert, note.ID, note.UserID)
	}
	return nil
}

// Decline deletes the pending requester->recipient edge. Deleting nothing is
// not an error: it reports false and inserts no notification.
func (r *PostgresConnectionRepository) Decline(ctx context.Context, requesterID, recipientID uuid.UUID, note *models.Notification) (bool, error) {
	var removed uuid.UUID

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`DELETE FROM connections
			 WHERE user_id = $1 AND connected_user_id = $2 AND status = 'pending'
			 RETURNING id`,
			requesterID, recipientID,
		).Scan(&removed)
		if errors.Is(err, pgx.ErrNoRows) {
			removed = uuid.Nil
			return nil
		}
		if err != nil {
			return err
		}

		if note != nil {
			return insertNotification(ctx, tx, note)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to decline connection: %w", err)
	}
	if removed == uuid.Nil {
		return false, nil
	}

	r.changes.emit(ctx, realtime.TableConnections, realtime.EventDelete, removed, requesterID)
	if note != nil {
		r.changes.emit(ctx, realtime.TableNotifications, realtime.EventInsert, note.ID, note.UserID)
	}
	return true, nil
}

// Unlink removes both directed edges and the conversation between the two
// users. It returns ErrNotFound, and changes nothing, when they are not linked.
func (r *PostgresConnectionRepository) Unlink(ctx context.Context, userID, peerID uuid.UUID, notes []*models.Notification) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM messages
			 WHERE (sender_id = $1 AND receiver_id = $2)
			    OR (sender_id = $2 AND receiver_id = $1)`,
			userID, peerID,
		)
		if err != nil {
			return err
		}

		result, err := tx.Exec(ctx,
			`DELETE FROM connections
			 WHERE (user_id = $1 AND connected_user_id = $2)
			    OR (user_id = $2 AND connected_user_id = $1)`,
			userID, peerID,
		)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}

		for _, n := range notes {
			if err := insertNotification(ctx, tx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to unlink users: %w", err)
	}

	r.changes.emit(ctx, realtime.TableConnections, realtime.EventDelete, uuid.Nil, userID)
	r.changes.emit(ctx, realtime.TableConnections, realtime.EventDelete, uuid.Nil, peerID)
	for _, n := range notes {
		r.changes.emit(ctx, realtime.TableNotifications, realtime.EventInsert, n.ID, n.UserID)
	}
	return nil
}

func (r *PostgresConnectionRepository) PromoteToProvider(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `UPDATE connections SET status = 'provider' WHERE user_id = $1 AND status = 'accepted'`

	result, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to promote connections: %w", err)
	}

	if result.RowsAffected() > 0 {
		r.changes.emit(ctx, realtime.TableConnections, realtime.EventUpdate, uuid.Nil, userID)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresConnectionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Connection, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.ID, &c.UserID, &c.ConnectedUserID, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		connections = append(connections, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return connections, nil
}

func insertConnection(ctx context.Context, q querier, c *models.Connection) error {
	query := `INSERT INTO connections (user_id, connected_user_id, status)
	          VALUES ($1, $2, $3)
	          RETURNING id, created_at`

	return q.QueryRow(ctx, query, c.UserID, c.ConnectedUserID, c.Status).Scan(&c.ID, &c.CreatedAt)
}
