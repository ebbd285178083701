package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"go.uber.org/zap"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConnectionExists = errors.New("a connection already exists with this user")
	ErrProfileExists    = errors.New("profile already exists")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// changeLog publishes row changes after the write that caused them has
// committed. Publish failures never fail the write.
type changeLog struct {
	pub realtime.Publisher
	log *zap.Logger
}

func (c changeLog) emit(ctx context.Context, table string, typ realtime.EventType, recordID, userID uuid.UUID) {
	if c.pub == nil {
		return
	}
	ev := realtime.ChangeEvent{
		Table:    table,
		Type:     typ,
		RecordID: recordID,
		UserID:   userID,
	}
	if err := c.pub.Publish(ctx, ev); err != nil {
		c.log.Warn("failed to publish change event",
			zap.String("table", table),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
