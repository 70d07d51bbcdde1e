package db

import (
	"context"

	"github.com/google/uuid"
)

const insertOutbox = `-- name: InsertOutbox :exec
INSERT INTO outbox (event_id, event_type, key, payload)
VALUES ($1, $2, $3, $4)
`

type InsertOutboxParams struct {
	EventID   uuid.UUID
	EventType string
	Key       string
	Payload   []byte
}

func (q *Queries) InsertOutbox(ctx context.Context, arg InsertOutboxParams) error {
	_, err := q.db.Exec(ctx, insertOutbox, arg.EventID, arg.EventType, arg.Key, arg.Payload)
	return err
}

const fetchPendingOutbox = `-- name: FetchPendingOutbox :many
SELECT id, event_id, event_type, key, payload, created_at, sent_at
FROM outbox
WHERE sent_at IS NULL
ORDER BY id
LIMIT $1
`

func (q *Queries) FetchPendingOutbox(ctx context.Context, limit int32) ([]Outbox, error) {
	rows, err := q.db.Query(ctx, fetchPendingOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Outbox
	for rows.Next() {
		var i Outbox
		if err := rows.Scan(
			&i.ID,
			&i.EventID,
			&i.EventType,
			&i.Key,
			&i.Payload,
			&i.CreatedAt,
			&i.SentAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markOutboxSent = `-- name: MarkOutboxSent :execrows
UPDATE outbox
SET sent_at = now()
WHERE id = ANY ($1::bigint[])
  AND sent_at IS NULL
`

func (q *Queries) MarkOutboxSent(ctx context.Context, ids []int64) (int64, error) {
	result, err := q.db.Exec(ctx, markOutboxSent, ids)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
