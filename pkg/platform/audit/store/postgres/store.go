// Package postgres keeps audit events in the outbox table. Append joins the
// caller's transaction, so an event commits or rolls back with the registry
// write it describes.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "civreg/pkg/platform/audit"
	"civreg/pkg/platform/tx"
)

const (
	insertEntry = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	selectPending = `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`
	markPublished = `UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) conn(ctx context.Context) conn {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

// Append serialises event into a pending outbox row. The row is stamped with
// the event time so the relay preserves registry order.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	stamp := event.Timestamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	entry, err := audit.NewOutboxEntry(event, stamp)
	if err != nil {
		return err
	}
	if _, err := s.conn(ctx).ExecContext(ctx, insertEntry,
		entry.ID, entry.AggregateType, entry.AggregateID, entry.EventType, entry.Payload, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("append outbox %s: %w", entry.EventType, err)
	}
	return nil
}

// FetchUnpublished returns up to limit pending rows, oldest first.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, selectPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	entries := make([]audit.OutboxEntry, 0, limit)
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	refs := make([]string, 0, len(ids))
	for _, eventID := range ids {
		refs = append(refs, eventID.String())
	}
	if _, err := s.conn(ctx).ExecContext(ctx, markPublished, at, pq.Array(refs)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
