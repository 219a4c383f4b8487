package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/aq2208/storefront-api/internal/usecase"
)

const (
	outboxPending = "PENDING"
	outboxSent    = "SENT"
)

type MySQLOutboxRepo struct{ db *sql.DB }

func NewMySQLOutboxRepo(db *sql.DB) *MySQLOutboxRepo { return &MySQLOutboxRepo{db: db} }

func (r *MySQLOutboxRepo) Insert(ctx context.Context, channel, aggregateID string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO outbox (channel,aggregate_id,payload,status,retry_count,next_attempt_at,created_at)
VALUES (?, ?, ?, ?, 0, NOW(), NOW())`, channel, aggregateID, payload, outboxPending)
	return err
}

// FetchPending returns due rows oldest first.
func (r *MySQLOutboxRepo) FetchPending(ctx context.Context, limit int) ([]usecase.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,channel,aggregate_id,payload,retry_count
FROM outbox
WHERE status = ? AND next_attempt_at <= NOW()
ORDER BY id
LIMIT ?`, outboxPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usecase.OutboxMessage
	for rows.Next() {
		var m usecase.OutboxMessage
		if err := rows.Scan(&m.ID, &m.Channel, &m.AggregateID, &m.Payload, &m.RetryCount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MySQLOutboxRepo) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET status = ? WHERE id = ?`, outboxSent, id)
	return err
}

func (r *MySQLOutboxRepo) MarkFailed(ctx context.Context, id int64, nextAttempt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE outbox SET retry_count = retry_count + 1, next_attempt_at = ?
WHERE id = ?`, nextAttempt, id)
	return err
}

var _ usecase.OutboxRepo = (*MySQLOutboxRepo)(nil)
