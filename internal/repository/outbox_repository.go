package repository

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/samber/lo"
)

type outboxRepository struct {
	q *db.Queries
}

func NewOutbox(pool *pgxpool.Pool) port.OutboxRepository {
	return &outboxRepository{
		q: db.New(pool),
	}
}

func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit[%d] must be positive", limit)
	}

	rows, err := r.q.FetchPendingOutbox(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("q.FetchPendingOutbox: %w", err)
	}

	return lo.Map(rows, func(row db.Outbox, _ int) domain.OutboxMessage {
		return domain.OutboxMessage{
			ID:        row.ID,
			EventID:   row.EventID,
			EventType: row.EventType,
			Key:       row.Key,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		}
	}), nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := r.q.MarkOutboxSent(ctx, ids); err != nil {
		return fmt.Errorf("q.MarkOutboxSent: %w", err)
	}

	return nil
}
