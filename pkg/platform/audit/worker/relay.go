// Package worker relays audit outbox entries to the event stream.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "civreg/pkg/platform/audit"
)

// Producer publishes outbox entries. Implementations must be safe to retry:
// an entry may be sent again if MarkPublished fails after a send.
type Producer interface {
	Publish(ctx context.Context, entries []audit.OutboxEntry) error
}

// Relay polls the outbox and forwards unpublished entries in creation order.
type Relay struct {
	outbox   audit.Outbox
	producer Producer
	interval time.Duration
	batch    int
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func NewRelay(outbox audit.Outbox, producer Producer, opts ...Option) *Relay {
	r := &Relay{
		outbox:   outbox,
		producer: producer,
		interval: 2 * time.Second,
		batch:    100,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "audit relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain publishes batches until the outbox is empty and returns the number
// of entries relayed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		entries, err := r.outbox.FetchUnpublished(ctx, r.batch)
		if err != nil {
			return total, err
		}
		if len(entries) == 0 {
			return total, nil
		}
		if err := r.producer.Publish(ctx, entries); err != nil {
			return total, err
		}
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
			return total, err
		}
		total += len(entries)
		if len(entries) < r.batch {
			return total, nil
		}
	}
}
