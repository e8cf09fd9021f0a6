package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// PostgresTx is the atomic tx.Runner. The *sql.Tx travels in the context so
// every store joins it through execer.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTx bounds each unit of work by timeout unless the caller's
// context already carries a deadline. Zero selects the default.
func NewPostgresTx(db *sql.DB, timeout time.Duration) *PostgresTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &PostgresTx{db: db, timeout: timeout}
}

func (p *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested units join the outer transaction.
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (p *PostgresTx) Atomic() bool { return true }
