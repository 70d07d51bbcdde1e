package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikolayk812/storefront/internal/port"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Observer is notified about relay progress, i.e. for metrics.
type Observer interface {
	OutboxPublished(n int)
	OutboxFailed()
}

type nopObserver struct{}

func (nopObserver) OutboxPublished(int) {}
func (nopObserver) OutboxFailed()       {}

// Relay moves pending outbox rows to the publisher. Delivery is at least once:
// a crash between publish and mark re-sends the batch.
type Relay struct {
	repo      port.OutboxRepository
	publisher Publisher
	interval  time.Duration
	batchSize int
	observer  Observer
	log       *slog.Logger
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithObserver(o Observer) RelayOption {
	return func(r *Relay) { r.observer = o }
}

func NewRelay(repo port.OutboxRepository, publisher Publisher, log *slog.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		repo:      repo,
		publisher: publisher,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		observer:  nopObserver{},
		log:       log,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run flushes on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.ErrorContext(ctx, "outbox flush failed", "error", err)
			}
		}
	}
}

// Flush publishes pending messages batch by batch until none are left and returns how many were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	var sent int

	for {
		messages, err := r.repo.FetchPending(ctx, r.batchSize)
		if err != nil {
			return sent, fmt.Errorf("repo.FetchPending: %w", err)
		}
		if len(messages) == 0 {
			return sent, nil
		}

		if err := r.publisher.Publish(ctx, messages); err != nil {
			r.observer.OutboxFailed()
			return sent, fmt.Errorf("publisher.Publish: %w", err)
		}

		ids := make([]int64, 0, len(messages))
		for _, m := range messages {
			ids = append(ids, m.ID)
		}

		if err := r.repo.MarkSent(ctx, ids); err != nil {
			return sent, fmt.Errorf("repo.MarkSent: %w", err)
		}

		sent += len(messages)
		r.observer.OutboxPublished(len(messages))
		r.log.DebugContext(ctx, "outbox batch published", "count", len(messages))

		if len(messages) < r.batchSize {
			return sent, nil
		}
	}
}
